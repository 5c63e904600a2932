package databases

// go generate: mockery --name CaseDatabase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/jurysane-api/models"
)

const caseName = "cases"

// ErrInvalidCategory is returned for a category with no keyword set
var ErrInvalidCategory = errors.New("invalid category")

// CaseDatabase contains the methods to use with the case database
type CaseDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertMany(ctx context.Context, cases []models.Case) error
}

type caseDatabase struct {
	db DatabaseHelper
}

// NewCaseDatabase initializes a new instance of case database with the provided db connection
func NewCaseDatabase(db DatabaseHelper) CaseDatabase {
	return &caseDatabase{
		db: db,
	}
}

func (c *caseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error) {
	legalCase := &models.Case{}
	err := c.db.Collection(caseName).FindOne(ctx, filter, opts...).Decode(&legalCase)
	if err != nil {
		return nil, err
	}
	return legalCase, nil
}

func (c *caseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error) {
	var cases []models.Case
	curr, err := c.db.Collection(caseName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &cases)
	if err != nil {
		return nil, err
	}
	return cases, nil
}

func (c *caseDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(caseName).CountDocuments(ctx, filter, opts...)
}

func (c *caseDatabase) InsertMany(ctx context.Context, cases []models.Case) error {
	docs := make([]interface{}, len(cases))
	for i := range cases {
		docs[i] = cases[i]
	}
	return c.db.Collection(caseName).InsertMany(ctx, docs)
}

// CaseSearchFilter matches cases whose title, description or any charge
// contains query, ignoring case.
func CaseSearchFilter(query string) bson.M {
	pattern := bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(query)), "$options": "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"description": pattern},
		bson.M{"charges": pattern},
	}}
}

// CaseCategoryFilter matches cases whose title or description mentions
// one of the category's keywords.
func CaseCategoryFilter(category string) (bson.M, error) {
	keywords, ok := models.CategoryKeywords[category]
	if !ok {
		return nil, ErrInvalidCategory
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	pattern := bson.M{"$regex": strings.Join(quoted, "|"), "$options": "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"description": pattern},
	}}, nil
}
