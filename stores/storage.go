package stores

import (
	"devecho-server/core"
	"devecho-server/stores/filesystem"
	"devecho-server/stores/memory"
	"devecho-server/stores/mongo"
	"devecho-server/stores/s3"
	"devecho-server/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

// GetStore selects the session store backend from STORAGE_TYPE.
func GetStore() core.SessionStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.SessionStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "mongo":
		uri := os.Getenv("MONGO_URI")
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		store = mongo.NewStore(uri)
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "devecho.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = bucketName
		store = s3.NewStore(bucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
