package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/databases/mocks"
	"github.com/linesmerrill/jurysane-api/models"
)

func TestNewCaseDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	caseDB := databases.NewCaseDatabase(db)

	assert.NotEmpty(t, caseDB)
}

func TestCaseDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Case)
		(*arg).ID = "mocked-case"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "cases").Return(collectionHelper)

	caseDB := databases.NewCaseDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	legalCase, err := caseDB.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, legalCase)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different different filter for correct
	// result
	legalCase, err = caseDB.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.Case{ID: "mocked-case"}, legalCase)
	assert.NoError(t, err)
}

func TestCaseDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Case)
		*arg = []models.Case{{ID: "a"}, {ID: "b"}}
	})
	cursor.On("Close", mock.Anything).Return(nil)
	collectionHelper.On("Find", mock.Anything, bson.M{}).Return(cursor, nil)
	collectionHelper.On("Find", mock.Anything, bson.M{"error": true}).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	caseDB := databases.NewCaseDatabase(dbHelper)

	cases, err := caseDB.Find(context.Background(), bson.M{})
	assert.NoError(t, err)
	assert.Len(t, cases, 2)
	cursor.AssertCalled(t, "Close", mock.Anything)

	cases, err = caseDB.Find(context.Background(), bson.M{"error": true})
	assert.EqualError(t, err, "mocked-error")
	assert.Nil(t, cases)
}

func TestCaseDatabase_InsertMany(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("InsertMany", mock.Anything, mock.MatchedBy(func(docs []interface{}) bool {
		return len(docs) == 2
	})).Return(nil)
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	caseDB := databases.NewCaseDatabase(dbHelper)
	err := caseDB.InsertMany(context.Background(), []models.Case{{ID: "a"}, {ID: "b"}})

	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}

func TestCaseCategoryFilter(t *testing.T) {
	filter, err := databases.CaseCategoryFilter("drug")
	assert.NoError(t, err)

	or := filter["$or"].(bson.A)
	assert.Len(t, or, 2)
	title := or[0].(bson.M)["title"].(bson.M)
	assert.Equal(t, "drug|possession|harris", title["$regex"])
	assert.Equal(t, "i", title["$options"])

	_, err = databases.CaseCategoryFilter("traffic")
	assert.ErrorIs(t, err, databases.ErrInvalidCategory)
}

func TestCaseSearchFilterEscapesQuery(t *testing.T) {
	filter := databases.CaseSearchFilter("  v. (State) ")

	or := filter["$or"].(bson.A)
	assert.Len(t, or, 3)
	charges := or[2].(bson.M)["charges"].(bson.M)
	assert.Equal(t, `v\. \(State\)`, charges["$regex"])
}
