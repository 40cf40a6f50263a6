package s3

import (
	"bytes"
	"context"
	"devecho-server/core"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// s3Store keeps one JSON object per room. S3 has no atomic find-or-insert, so
// concurrent creates for the same room are collapsed through a singleflight
// group keyed by room ID.
type s3Store struct {
	s3Client *awss3.Client
	bucket   string
	creates  singleflight.Group
}

// NewStore creates a new S3-based session store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: awss3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func sessionKey(roomID string) string {
	return "sessions/" + base64.URLEncoding.EncodeToString([]byte(roomID)) + ".json"
}

func (s *s3Store) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	result, err, _ := s.creates.Do(roomID, func() (any, error) {
		session, err := s.get(ctx, roomID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, core.ErrSessionNotFound) {
			return nil, err
		}

		session = core.NewCodeSession(roomID)
		if err := s.put(ctx, session); err != nil {
			return nil, err
		}
		logrus.WithField("room_id", roomID).Info("Session created")
		return session, nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to find or create session")
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return result.(*core.CodeSession), nil
}

func (s *s3Store) SetCode(ctx context.Context, roomID string, code string) error {
	return s.update(ctx, roomID, func(session *core.CodeSession) {
		session.Code = code
	})
}

func (s *s3Store) SetSummary(ctx context.Context, roomID string, summary string) error {
	return s.update(ctx, roomID, func(session *core.CodeSession) {
		session.Summary = summary
	})
}

func (s *s3Store) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	session, err := s.get(ctx, roomID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return session, nil
}

func (s *s3Store) update(ctx context.Context, roomID string, mutate func(*core.CodeSession)) error {
	session, err := s.get(ctx, roomID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return fmt.Errorf("update session %s: %w", roomID, core.ErrSessionNotFound)
		}
		return fmt.Errorf("update session %s: %w", roomID, core.ErrStoreUnavailable)
	}

	mutate(session)
	session.UpdatedAt = time.Now()
	if err := s.put(ctx, session); err != nil {
		return fmt.Errorf("update session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *s3Store) get(ctx context.Context, roomID string) (*core.CodeSession, error) {
	resp, err := s.s3Client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sessionKey(roomID)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("session for room %s: %w", roomID, core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to get session %s: %v", roomID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read session data: %v", err)
	}

	var session core.CodeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %v", roomID, err)
	}
	return &session, nil
}

func (s *s3Store) put(ctx context.Context, session *core.CodeSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %v", session.RoomID, err)
	}

	_, err = s.s3Client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sessionKey(session.RoomID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload session %s: %v", session.RoomID, err)
	}
	return nil
}
