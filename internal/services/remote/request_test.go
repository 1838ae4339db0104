package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/remote-transport/internal/adapters/ports"
	"github.com/kevin07696/remote-transport/internal/adapters/serializer"
	"github.com/kevin07696/remote-transport/internal/services/remote"
	pkgerrors "github.com/kevin07696/remote-transport/pkg/errors"
	"github.com/kevin07696/remote-transport/test/mocks"
)

// MockSerializer mocks the serializer port
type MockSerializer struct {
	mock.Mock
}

func (m *MockSerializer) ContentType() string {
	return "application/test"
}

func (m *MockSerializer) Serialize(params ports.Params) ([]byte, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSerializer) Deserialize(data []byte) (ports.Params, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Params), args.Error(1)
}

func TestNewRequest_Validation(t *testing.T) {
	transport := mocks.NewMockTransport("https://example.com")

	_, err := remote.NewRequest(nil, serializer.NewJSON(), zap.NewNop())
	var validationErr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "transport", validationErr.Field)

	_, err = remote.NewRequest(transport, nil, zap.NewNop())
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "serializer", validationErr.Field)

	req, err := remote.NewRequest(transport, serializer.NewJSON(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", req.Destination())
}

func TestRequest_Call(t *testing.T) {
	transport := mocks.NewMockTransport("https://example.com")
	transport.QueueResult(ports.Params{"node_key": "abc"}, nil)

	req, err := remote.NewRequest(transport, serializer.NewJSON(), zap.NewNop())
	require.NoError(t, err)

	resp, err := req.Call(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ports.Params{"node_key": "abc"}, resp)
	assert.Equal(t, ports.Params{"node_key": "abc"}, req.Response())
	require.Equal(t, 1, transport.CallCount())
	assert.Equal(t, "GET", transport.LastCall().Method)
	assert.Nil(t, transport.LastCall().Body)
}

func TestRequest_CallWithParams(t *testing.T) {
	transport := mocks.NewMockTransport("https://example.com")
	transport.QueueResult(ports.Params{"ok": true}, nil)

	req, err := remote.NewRequest(transport, serializer.NewJSON(), zap.NewNop())
	require.NoError(t, err)

	resp, err := req.CallWithParams(context.Background(), ports.Params{"enroll_secret": "s3cr3t"}, true)
	require.NoError(t, err)
	assert.Equal(t, ports.Params{"ok": true}, resp)

	call := transport.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "POST", call.Method)
	assert.JSONEq(t, `{"enroll_secret":"s3cr3t"}`, string(call.Body))
	assert.True(t, call.Compress)
	assert.Equal(t, ports.Params{"ok": true}, req.Response())
}

func TestRequest_SerializeFailureSkipsTransport(t *testing.T) {
	transport := mocks.NewMockTransport("https://example.com")
	ser := new(MockSerializer)
	serErr := errors.New("cannot encode")
	ser.On("Serialize", mock.Anything).Return(nil, serErr)

	req, err := remote.NewRequest(transport, ser, zap.NewNop())
	require.NoError(t, err)

	resp, err := req.CallWithParams(context.Background(), ports.Params{"a": 1}, false)
	assert.ErrorIs(t, err, serErr)
	assert.Nil(t, resp)
	assert.Equal(t, 0, transport.CallCount())
	ser.AssertExpectations(t)
}

func TestRequest_FailureKeepsPreviousResponse(t *testing.T) {
	transport := mocks.NewMockTransport("https://example.com")
	transport.QueueResult(ports.Params{"first": "yes"}, nil)
	transport.QueueResult(nil, pkgerrors.NewTransportError(pkgerrors.CodeConnectivity, "Request error: refused", nil))

	req, err := remote.NewRequest(transport, serializer.NewJSON(), zap.NewNop())
	require.NoError(t, err)

	_, err = req.Call(context.Background())
	require.NoError(t, err)
	resp, err := req.Call(context.Background())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, pkgerrors.CodeConnectivity, pkgerrors.CodeOf(err))

	assert.Equal(t, ports.Params{"first": "yes"}, req.Response())
}
