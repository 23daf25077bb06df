package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/service"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/response"
)

type stubProgramRepo struct {
	programs map[string]*models.Program
	courses  int
	students int
}

func (s *stubProgramRepo) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var out []models.Program
	for _, p := range s.programs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (s *stubProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := s.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubProgramRepo) ExistsByName(ctx context.Context, name string) (bool, error) { return false, nil }
func (s *stubProgramRepo) ExistsByCode(ctx context.Context, code string) (bool, error) { return false, nil }

func (s *stubProgramRepo) Create(ctx context.Context, program *models.Program) error {
	program.ID = "prog-new"
	if s.programs == nil {
		s.programs = make(map[string]*models.Program)
	}
	s.programs[program.ID] = program
	return nil
}

func (s *stubProgramRepo) CountDependents(ctx context.Context, id string) (int, int, error) {
	return s.courses, s.students, nil
}

func (s *stubProgramRepo) Delete(ctx context.Context, id string) error {
	delete(s.programs, id)
	return nil
}

type stubProgramCourses struct{}

func (stubProgramCourses) ListByProgram(ctx context.Context, programID string) ([]models.CourseDetail, error) {
	return nil, nil
}

func newProgramRouter(repo *stubProgramRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewProgramService(repo, stubProgramCourses{}, nil, nil)
	h := NewProgramHandler(svc)

	r := gin.New()
	r.GET("/programs/:id", h.Get)
	r.POST("/programs", h.Create)
	r.DELETE("/programs/:id", h.Delete)
	return r
}

func TestProgramGet(t *testing.T) {
	repo := &stubProgramRepo{programs: map[string]*models.Program{
		"prog-1": {ID: "prog-1", Name: "Enfermería", Code: "ENF22", DurationYears: 3, Active: true},
	}}
	router := newProgramRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/programs/prog-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "ENF22", data["code"])
}

func TestProgramGetNotFound(t *testing.T) {
	router := newProgramRouter(&stubProgramRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/programs/prog-gone", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestProgramCreate(t *testing.T) {
	repo := &stubProgramRepo{}
	router := newProgramRouter(repo)

	body, _ := json.Marshal(map[string]interface{}{
		"name":           "Tecnicatura en Programación",
		"code":           "TP25",
		"duration_years": 3,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/programs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, repo.programs, "prog-new")
}

func TestProgramCreateInvalidPayload(t *testing.T) {
	router := newProgramRouter(&stubProgramRepo{})

	body, _ := json.Marshal(map[string]interface{}{"name": "X"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/programs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgramDeleteConflict(t *testing.T) {
	repo := &stubProgramRepo{
		programs: map[string]*models.Program{"prog-1": {ID: "prog-1", Name: "Enfermería", Code: "ENF22"}},
		courses:  2,
	}
	router := newProgramRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/programs/prog-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, repo.programs, "prog-1")
}
