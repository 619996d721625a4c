// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/surfaceops/surface-api/internal/core (interfaces: ResultQueue)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=result_queue_mock.go github.com/surfaceops/surface-api/internal/core ResultQueue
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	core "github.com/surfaceops/surface-api/internal/core"
	gomock "go.uber.org/mock/gomock"
)

// MockResultQueue is a mock of ResultQueue interface.
type MockResultQueue struct {
	ctrl     *gomock.Controller
	recorder *MockResultQueueMockRecorder
	isgomock struct{}
}

// MockResultQueueMockRecorder is the mock recorder for MockResultQueue.
type MockResultQueueMockRecorder struct {
	mock *MockResultQueue
}

// NewMockResultQueue creates a new mock instance.
func NewMockResultQueue(ctrl *gomock.Controller) *MockResultQueue {
	mock := &MockResultQueue{ctrl: ctrl}
	mock.recorder = &MockResultQueueMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockResultQueue) EXPECT() *MockResultQueueMockRecorder {
	return m.recorder
}

// Ack mocks base method.
func (m *MockResultQueue) Ack(ctx context.Context, msg *core.ResultMessage) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ack", ctx, msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// Ack indicates an expected call of Ack.
func (mr *MockResultQueueMockRecorder) Ack(ctx, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ack", reflect.TypeOf((*MockResultQueue)(nil).Ack), ctx, msg)
}

// DeadLetter mocks base method.
func (m *MockResultQueue) DeadLetter(ctx context.Context, msg *core.ResultMessage) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeadLetter", ctx, msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeadLetter indicates an expected call of DeadLetter.
func (mr *MockResultQueueMockRecorder) DeadLetter(ctx, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeadLetter", reflect.TypeOf((*MockResultQueue)(nil).DeadLetter), ctx, msg)
}

// Dequeue mocks base method.
func (m *MockResultQueue) Dequeue(ctx context.Context) (*core.ResultMessage, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Dequeue", ctx)
	ret0, _ := ret[0].(*core.ResultMessage)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Dequeue indicates an expected call of Dequeue.
func (mr *MockResultQueueMockRecorder) Dequeue(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Dequeue", reflect.TypeOf((*MockResultQueue)(nil).Dequeue), ctx)
}

// Enqueue mocks base method.
func (m *MockResultQueue) Enqueue(ctx context.Context, msg core.ResultMessage) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Enqueue", ctx, msg)
	ret0, _ := ret[0].(error)
	return ret0
}

// Enqueue indicates an expected call of Enqueue.
func (mr *MockResultQueueMockRecorder) Enqueue(ctx, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Enqueue", reflect.TypeOf((*MockResultQueue)(nil).Enqueue), ctx, msg)
}

// RequeueExpired mocks base method.
func (m *MockResultQueue) RequeueExpired(ctx context.Context, now time.Time) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RequeueExpired", ctx, now)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RequeueExpired indicates an expected call of RequeueExpired.
func (mr *MockResultQueueMockRecorder) RequeueExpired(ctx, now any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RequeueExpired", reflect.TypeOf((*MockResultQueue)(nil).RequeueExpired), ctx, now)
}

// Retry mocks base method.
func (m *MockResultQueue) Retry(ctx context.Context, msg *core.ResultMessage, delay time.Duration) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Retry", ctx, msg, delay)
	ret0, _ := ret[0].(error)
	return ret0
}

// Retry indicates an expected call of Retry.
func (mr *MockResultQueueMockRecorder) Retry(ctx, msg, delay any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Retry", reflect.TypeOf((*MockResultQueue)(nil).Retry), ctx, msg, delay)
}
