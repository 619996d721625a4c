// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: OutboxRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=outbox_repository_mock.go github.com/surfaceops/surface-api/internal/core OutboxRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/surfaceops/surface-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockOutboxRepository is a mock of OutboxRepository interface.
type MockOutboxRepository struct {
	ctrl     *gomock.Controller
	recorder *MockOutboxRepositoryMockRecorder
	isgomock struct{}
}

// MockOutboxRepositoryMockRecorder is the mock recorder for MockOutboxRepository.
type MockOutboxRepositoryMockRecorder struct {
	mock *MockOutboxRepository
}

// NewMockOutboxRepository creates a new mock instance.
func NewMockOutboxRepository(ctrl *gomock.Controller) *MockOutboxRepository {
	mock := &MockOutboxRepository{ctrl: ctrl}
	mock.recorder = &MockOutboxRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOutboxRepository) EXPECT() *MockOutboxRepositoryMockRecorder {
	return m.recorder
}

// MarkError mocks base method.
func (m *MockOutboxRepository) MarkError(ctx context.Context, id string, terminal bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkError", ctx, id, terminal)
	ret0, _ := ret[0].(error)
	return ret0
}

// MarkError indicates an expected call of MarkError.
func (mr *MockOutboxRepositoryMockRecorder) MarkError(ctx, id, terminal any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkError", reflect.TypeOf((*MockOutboxRepository)(nil).MarkError), ctx, id, terminal)
}

// MarkSent mocks base method.
func (m *MockOutboxRepository) MarkSent(ctx context.Context, id string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkSent", ctx, id)
	ret0, _ := ret[0].(error)
	return ret0
}

// MarkSent indicates an expected call of MarkSent.
func (mr *MockOutboxRepositoryMockRecorder) MarkSent(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkSent", reflect.TypeOf((*MockOutboxRepository)(nil).MarkSent), ctx, id)
}

// PendingBatch mocks base method.
func (m *MockOutboxRepository) PendingBatch(ctx context.Context, limit int) ([]*model.OutboxEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PendingBatch", ctx, limit)
	ret0, _ := ret[0].([]*model.OutboxEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// PendingBatch indicates an expected call of PendingBatch.
func (mr *MockOutboxRepositoryMockRecorder) PendingBatch(ctx, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PendingBatch", reflect.TypeOf((*MockOutboxRepository)(nil).PendingBatch), ctx, limit)
}
