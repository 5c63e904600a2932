package databases

// go generate: mockery --name TrialSessionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/jurysane-api/models"
)

const trialSessionName = "trialsessions"

// TrialSessionDatabase contains the methods to use with the trial session database
type TrialSessionDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.TrialSession, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.TrialSession, error)
	InsertOne(ctx context.Context, session *models.TrialSession) error
	// ReplaceOne returns how many documents matched filter
	ReplaceOne(ctx context.Context, filter interface{}, session *models.TrialSession) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
}

type trialSessionDatabase struct {
	db DatabaseHelper
}

// NewTrialSessionDatabase initializes a new instance of trial session database with the provided db connection
func NewTrialSessionDatabase(db DatabaseHelper) TrialSessionDatabase {
	return &trialSessionDatabase{
		db: db,
	}
}

func (t *trialSessionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.TrialSession, error) {
	session := &models.TrialSession{}
	err := t.db.Collection(trialSessionName).FindOne(ctx, filter, opts...).Decode(&session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (t *trialSessionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.TrialSession, error) {
	var sessions []models.TrialSession
	curr, err := t.db.Collection(trialSessionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &sessions)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (t *trialSessionDatabase) InsertOne(ctx context.Context, session *models.TrialSession) error {
	_, err := t.db.Collection(trialSessionName).InsertOne(ctx, session)
	return err
}

func (t *trialSessionDatabase) ReplaceOne(ctx context.Context, filter interface{}, session *models.TrialSession) (int64, error) {
	return t.db.Collection(trialSessionName).ReplaceOne(ctx, filter, session)
}

func (t *trialSessionDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return t.db.Collection(trialSessionName).DeleteMany(ctx, filter)
}
