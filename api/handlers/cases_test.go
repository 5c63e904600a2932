package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/models"
)

func TestCasesHandler(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("Find", mock.Anything, bson.M{}, mock.Anything).Return([]models.Case{*testCase()}, nil)

	rr := ta.do("GET", "/api/v1/cases/", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var cases []models.Case
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cases))
	require.Len(t, cases, 1)
	assert.Equal(t, "State v. Doe", cases[0].Title)
}

func TestCasesHandlerEmpty(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("Find", mock.Anything, bson.M{}, mock.Anything).Return(nil, nil)

	rr := ta.do("GET", "/api/v1/cases/", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestCasesHandlerFailedToFind(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))

	rr := ta.do("GET", "/api/v1/cases/", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, models.MessageError{Message: "failed to load cases", Error: "mocked-error"}, errorBody(t, rr))
}

func TestCaseByIDHandler(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("FindOne", mock.Anything, bson.M{"_id": "case-1"}).Return(testCase(), nil)

	rr := ta.do("GET", "/api/v1/cases/case-1", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"case-1"`)
}

func TestCaseByIDHandlerNotFound(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	rr := ta.do("GET", "/api/v1/cases/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "case not found", errorBody(t, rr).Message)
}

func TestCaseSearchHandler(t *testing.T) {
	ta := newTestApp(t, 10)
	ta.cases.On("Find", mock.Anything, databases.CaseSearchFilter("armed robbery"), mock.Anything).
		Return([]models.Case{*testCase()}, nil)

	rr := ta.do("GET", "/api/v1/cases/search/armed%20robbery", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	ta.cases.AssertExpectations(t)
}

func TestCasesByCategoryHandler(t *testing.T) {
	ta := newTestApp(t, 10)
	filter, err := databases.CaseCategoryFilter("violent")
	require.NoError(t, err)
	ta.cases.On("Find", mock.Anything, filter, mock.Anything).Return([]models.Case{}, nil)

	rr := ta.do("GET", "/api/v1/cases/category/Violent", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	ta.cases.AssertExpectations(t)
}

func TestCasesByCategoryHandlerInvalid(t *testing.T) {
	ta := newTestApp(t, 10)

	rr := ta.do("GET", "/api/v1/cases/category/parking", "", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid category", errorBody(t, rr).Message)
	ta.cases.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}
