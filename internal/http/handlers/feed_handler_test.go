package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/shebagreen/cleanup-backend/internal/models"
	"github.com/shebagreen/cleanup-backend/internal/service"
)

type feedReportStoreStub struct {
	mock.Mock
}

func (m *feedReportStoreStub) ListVerified(ctx context.Context, limit, offset int, sortByTokens bool) ([]models.Report, error) {
	args := m.Called(ctx, limit, offset, sortByTokens)
	return args.Get(0).([]models.Report), args.Error(1)
}

func (m *feedReportStoreStub) CountByStatus(ctx context.Context, status string) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

type feedUserStoreStub struct {
	mock.Mock
}

func (m *feedUserStoreStub) GetByUserIDs(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).(map[string]models.User), args.Error(1)
}

func newFeedTestRouter(reports *feedReportStoreStub, users *feedUserStoreStub) *gin.Engine {
	r := gin.New()
	h := NewFeedHandler(service.NewFeedService(reports, users, 1))
	r.GET("/feed", h.GetFeed)
	return r
}

func TestFeedHandler_PageLimitFilter(t *testing.T) {
	reports := new(feedReportStoreStub)
	users := new(feedUserStoreStub)

	reports.On("ListVerified", mock.Anything, 10, 20, true).Return([]models.Report{}, nil)
	reports.On("CountByStatus", mock.Anything, models.ReportStatusVerified).Return(0, nil)
	users.On("GetByUserIDs", mock.Anything, []string{}).Return(map[string]models.User{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/feed?page=3&limit=10&filter=top", nil)
	newFeedTestRouter(reports, users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"page":3`)
	reports.AssertExpectations(t)
}

func TestFeedHandler_Defaults(t *testing.T) {
	reports := new(feedReportStoreStub)
	users := new(feedUserStoreStub)

	reports.On("ListVerified", mock.Anything, 20, 0, false).Return([]models.Report{}, nil)
	reports.On("CountByStatus", mock.Anything, models.ReportStatusVerified).Return(0, nil)
	users.On("GetByUserIDs", mock.Anything, []string{}).Return(map[string]models.User{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	newFeedTestRouter(reports, users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	reports.AssertExpectations(t)
}

func TestFeedHandler_RecentFilterKeepsDateOrder(t *testing.T) {
	reports := new(feedReportStoreStub)
	users := new(feedUserStoreStub)

	reports.On("ListVerified", mock.Anything, 20, 0, false).Return([]models.Report{}, nil)
	reports.On("CountByStatus", mock.Anything, models.ReportStatusVerified).Return(0, nil)
	users.On("GetByUserIDs", mock.Anything, []string{}).Return(map[string]models.User{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/feed?filter=recent", nil)
	newFeedTestRouter(reports, users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	reports.AssertExpectations(t)
}
