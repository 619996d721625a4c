// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: JobRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=job_repository_mock.go github.com/surfaceops/surface-api/internal/core JobRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	core "github.com/surfaceops/surface-api/internal/core"
	model "github.com/surfaceops/surface-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockJobRepository is a mock of JobRepository interface.
type MockJobRepository struct {
	ctrl     *gomock.Controller
	recorder *MockJobRepositoryMockRecorder
	isgomock struct{}
}

// MockJobRepositoryMockRecorder is the mock recorder for MockJobRepository.
type MockJobRepositoryMockRecorder struct {
	mock *MockJobRepository
}

// NewMockJobRepository creates a new mock instance.
func NewMockJobRepository(ctrl *gomock.Controller) *MockJobRepository {
	mock := &MockJobRepository{ctrl: ctrl}
	mock.recorder = &MockJobRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockJobRepository) EXPECT() *MockJobRepositoryMockRecorder {
	return m.recorder
}

// Cancel mocks base method.
func (m *MockJobRepository) Cancel(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Cancel", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Cancel indicates an expected call of Cancel.
func (mr *MockJobRepositoryMockRecorder) Cancel(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Cancel", reflect.TypeOf((*MockJobRepository)(nil).Cancel), ctx, id)
}

// ClaimNext mocks base method.
func (m *MockJobRepository) ClaimNext(ctx context.Context, params core.ClaimParams) (*model.Job, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ClaimNext", ctx, params)
	ret0, _ := ret[0].(*model.Job)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ClaimNext indicates an expected call of ClaimNext.
func (mr *MockJobRepositoryMockRecorder) ClaimNext(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ClaimNext", reflect.TypeOf((*MockJobRepository)(nil).ClaimNext), ctx, params)
}

// Complete mocks base method.
func (m *MockJobRepository) Complete(ctx context.Context, params core.CompleteParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Complete", ctx, params)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Complete indicates an expected call of Complete.
func (mr *MockJobRepositoryMockRecorder) Complete(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Complete", reflect.TypeOf((*MockJobRepository)(nil).Complete), ctx, params)
}

// CreateBatch mocks base method.
func (m *MockJobRepository) CreateBatch(ctx context.Context, req *model.TriggerWorkflowRequest) (*model.JobHistory, []*model.Job, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateBatch", ctx, req)
	ret0, _ := ret[0].(*model.JobHistory)
	ret1, _ := ret[1].([]*model.Job)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// CreateBatch indicates an expected call of CreateBatch.
func (mr *MockJobRepositoryMockRecorder) CreateBatch(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateBatch", reflect.TypeOf((*MockJobRepository)(nil).CreateBatch), ctx, req)
}

// CreateInHistory mocks base method.
func (m *MockJobRepository) CreateInHistory(ctx context.Context, historyID string, req *model.CreateJobRequest) (*model.Job, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateInHistory", ctx, historyID, req)
	ret0, _ := ret[0].(*model.Job)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CreateInHistory indicates an expected call of CreateInHistory.
func (mr *MockJobRepositoryMockRecorder) CreateInHistory(ctx, historyID, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateInHistory", reflect.TypeOf((*MockJobRepository)(nil).CreateInHistory), ctx, historyID, req)
}

// Delete mocks base method.
func (m *MockJobRepository) Delete(ctx context.Context, id string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, id)
	ret0, _ := ret[0].(error)
	return ret0
}

// Delete indicates an expected call of Delete.
func (mr *MockJobRepositoryMockRecorder) Delete(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockJobRepository)(nil).Delete), ctx, id)
}

// Fail mocks base method.
func (m *MockJobRepository) Fail(ctx context.Context, params core.FailParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Fail", ctx, params)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Fail indicates an expected call of Fail.
func (mr *MockJobRepositoryMockRecorder) Fail(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Fail", reflect.TypeOf((*MockJobRepository)(nil).Fail), ctx, params)
}

// GetByID mocks base method.
func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.Job)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockJobRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockJobRepository)(nil).GetByID), ctx, id)
}

// Rerun mocks base method.
func (m *MockJobRepository) Rerun(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Rerun", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Rerun indicates an expected call of Rerun.
func (mr *MockJobRepositoryMockRecorder) Rerun(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Rerun", reflect.TypeOf((*MockJobRepository)(nil).Rerun), ctx, id)
}

// Stats mocks base method.
func (m *MockJobRepository) Stats(ctx context.Context, category model.JobCategory) (*model.JobStats, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stats", ctx, category)
	ret0, _ := ret[0].(*model.JobStats)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Stats indicates an expected call of Stats.
func (mr *MockJobRepositoryMockRecorder) Stats(ctx, category any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stats", reflect.TypeOf((*MockJobRepository)(nil).Stats), ctx, category)
}
