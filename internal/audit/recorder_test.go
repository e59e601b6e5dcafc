package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type logStoreMock struct {
	mock.Mock
}

func (m *logStoreMock) CreateStatusLog(ctx context.Context, l *models.StatusLog) (*models.StatusLog, error) {
	args := m.Called(ctx, l)
	out, _ := args.Get(0).(*models.StatusLog)
	return out, args.Error(1)
}

type panicStore struct{}

func (panicStore) CreateStatusLog(ctx context.Context, l *models.StatusLog) (*models.StatusLog, error) {
	panic("store exploded")
}

type RecorderSuite struct {
	suite.Suite

	store   *logStoreMock
	metrics *Metrics
	rec     *Recorder
}

func (s *RecorderSuite) SetupTest() {
	s.store = &logStoreMock{}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.rec = NewRecorder(s.store, s.metrics)
}

func (s *RecorderSuite) TestAfterCreate_WritesOneLog() {
	c := &models.Cargo{ID: "c1", TrackingCode: "CARGO-20250101-AAAAAA", Origin: "Shanghai, China", CreatedBy: "u1"}

	s.store.On("CreateStatusLog", mock.Anything, mock.MatchedBy(func(l *models.StatusLog) bool {
		return l.CargoID == "c1" &&
			l.Status == models.CargoStatusPending &&
			l.Location == "Shanghai, China" &&
			l.Note == "Cargo created" &&
			l.UpdatedBy == "u1"
	})).Return(&models.StatusLog{ID: 1}, nil).Once()

	s.rec.AfterCreate(context.Background(), c, &models.Actor{ID: "u2"})

	s.store.AssertExpectations(s.T())
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogsWritten.WithLabelValues(triggerCreated)))
}

func (s *RecorderSuite) TestAfterCreate_StoreErrorSwallowed() {
	s.store.On("CreateStatusLog", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	s.Require().NotPanics(func() {
		s.rec.AfterCreate(context.Background(), &models.Cargo{ID: "c1"}, nil)
	})
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogFailures.WithLabelValues(triggerCreated)))
	s.Require().Equal(0.0, testutil.ToFloat64(s.metrics.LogsWritten.WithLabelValues(triggerCreated)))
}

func (s *RecorderSuite) TestAfterUpdate_NoStatusChange_NoWrite() {
	original := &models.Cargo{ID: "c1", Destination: "A", CurrentStatus: models.CargoStatusInTransit}
	updated := &models.Cargo{ID: "c1", Destination: "B", CurrentStatus: models.CargoStatusInTransit}

	s.rec.AfterUpdate(context.Background(), updated, original, &models.Actor{ID: "u2"})

	s.store.AssertNotCalled(s.T(), "CreateStatusLog", mock.Anything, mock.Anything)
}

func (s *RecorderSuite) TestAfterUpdate_StatusChange_ActorWins() {
	original := &models.Cargo{ID: "c1", CurrentStatus: models.CargoStatusPending, CreatedBy: "u1"}
	updated := &models.Cargo{ID: "c1", CurrentStatus: models.CargoStatusInTransit, CreatedBy: "u1"}

	s.store.On("CreateStatusLog", mock.Anything, mock.MatchedBy(func(l *models.StatusLog) bool {
		return l.Status == models.CargoStatusInTransit &&
			l.Note == "Status changed from Pending to In Transit" &&
			l.UpdatedBy == "u2"
	})).Return(&models.StatusLog{ID: 2}, nil).Once()

	s.rec.AfterUpdate(context.Background(), updated, original, &models.Actor{ID: "u2"})

	s.store.AssertExpectations(s.T())
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogsWritten.WithLabelValues(triggerUpdated)))
}

func (s *RecorderSuite) TestAfterUpdate_StoreErrorSwallowed() {
	original := &models.Cargo{ID: "c1", CurrentStatus: models.CargoStatusPending}
	updated := &models.Cargo{ID: "c1", CurrentStatus: models.CargoStatusArrived}
	s.store.On("CreateStatusLog", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	s.rec.AfterUpdate(context.Background(), updated, original, nil)

	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogFailures.WithLabelValues(triggerUpdated)))
}

func (s *RecorderSuite) TestStorePanicIsContained() {
	rec := NewRecorder(panicStore{}, s.metrics)

	s.Require().NotPanics(func() {
		rec.AfterCreate(context.Background(), &models.Cargo{ID: "c1"}, nil)
	})
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogFailures.WithLabelValues(triggerCreated)))
}

func (s *RecorderSuite) TestNilMetrics() {
	rec := NewRecorder(s.store, nil)
	s.store.On("CreateStatusLog", mock.Anything, mock.Anything).Return(nil, errors.New("x")).Once()
	s.Require().NotPanics(func() {
		rec.AfterCreate(context.Background(), &models.Cargo{ID: "c1"}, nil)
	})
}

func (s *RecorderSuite) TestRecord_FillsMissingAuthor() {
	s.store.On("CreateStatusLog", mock.Anything, mock.MatchedBy(func(l *models.StatusLog) bool {
		return l.CargoID == "c1" && l.Note == "Loaded at Tema" && l.UpdatedBy == "u2"
	})).Return(&models.StatusLog{ID: 7, CargoID: "c1", UpdatedBy: "u2"}, nil).Once()

	out, err := s.rec.Record(context.Background(), &models.StatusLog{
		CargoID: "c1", Status: models.CargoStatusInTransit, Note: "Loaded at Tema",
	}, &models.Actor{ID: "u2", Role: models.RoleStaff})
	s.Require().NoError(err)
	s.Require().Equal(uint64(7), out.ID)
	s.store.AssertExpectations(s.T())
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogsWritten.WithLabelValues(triggerManual)))
}

func (s *RecorderSuite) TestRecord_KeepsGivenAuthor() {
	s.store.On("CreateStatusLog", mock.Anything, mock.MatchedBy(func(l *models.StatusLog) bool {
		return l.UpdatedBy == "driver-7"
	})).Return(&models.StatusLog{ID: 8}, nil).Once()

	_, err := s.rec.Record(context.Background(), &models.StatusLog{CargoID: "c1", UpdatedBy: "driver-7"}, &models.Actor{ID: "u2"})
	s.Require().NoError(err)
	s.store.AssertExpectations(s.T())
}

func (s *RecorderSuite) TestRecord_ErrorsReturned() {
	_, err := s.rec.Record(context.Background(), &models.StatusLog{}, nil)
	s.Require().ErrorIs(err, models.ErrInvalidInput)

	want := errors.New("db down")
	s.store.On("CreateStatusLog", mock.Anything, mock.Anything).Return(nil, want).Once()
	_, err = s.rec.Record(context.Background(), &models.StatusLog{CargoID: "c1"}, nil)
	s.Require().ErrorIs(err, want)
	s.Require().Equal(1.0, testutil.ToFloat64(s.metrics.LogFailures.WithLabelValues(triggerManual)))
}

func (s *RecorderSuite) TestHooksStoreBuiltEntriesAsIs() {
	// A cargo with no creator written by an anonymous import stays unattributed.
	s.store.On("CreateStatusLog", mock.Anything, mock.MatchedBy(func(l *models.StatusLog) bool {
		return l.UpdatedBy == ""
	})).Return(&models.StatusLog{ID: 1}, nil).Once()

	s.rec.AfterCreate(context.Background(), &models.Cargo{ID: "c1"}, nil)
	s.store.AssertExpectations(s.T())
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}
