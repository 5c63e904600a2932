package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/api"
	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/models"
)

// Case exported for testing purposes
type Case struct {
	DB databases.CaseDatabase
}

func caseListOptions() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
}

func writeCases(w http.ResponseWriter, cases []models.Case) {
	if len(cases) == 0 {
		cases = []models.Case{}
	}
	b, err := json.Marshal(cases)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CasesHandler returns every case in the catalog
func (c Case) CasesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, bson.M{}, caseListOptions())
	if err != nil {
		config.ErrorStatus("failed to load cases", http.StatusInternalServerError, w, err)
		return
	}
	writeCases(w, dbResp)
}

// CaseByIDHandler returns a case by ID
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	zap.S().Debugf("case_id: %v", caseID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": caseID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("case not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to retrieve case", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CaseSearchHandler returns cases whose title, description or charges
// contain the query
func (c Case) CaseSearchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(mux.Vars(r)["query"])
	if query == "" {
		config.ErrorStatus("search query is required", http.StatusBadRequest, w, errors.New("empty query"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, databases.CaseSearchFilter(query), caseListOptions())
	if err != nil {
		config.ErrorStatus("search failed", http.StatusInternalServerError, w, err)
		return
	}
	writeCases(w, dbResp)
}

// CasesByCategoryHandler returns cases in one category
func (c Case) CasesByCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(mux.Vars(r)["category"])

	filter, err := databases.CaseCategoryFilter(category)
	if err != nil {
		config.ErrorStatus("Invalid category", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, filter, caseListOptions())
	if err != nil {
		config.ErrorStatus("failed to filter cases", http.StatusInternalServerError, w, err)
		return
	}
	writeCases(w, dbResp)
}
