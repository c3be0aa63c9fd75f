package toolshed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/shed2git/internal/toolshed"
)

const (
	testOwnerConstant            = "devteam"
	testRepositoriesPathConstant = "/api/repositories"
	testRetryDelayConstant       = time.Millisecond
	testRegistryPayloadConstant  = `[
		{"name": "bwa", "owner": "devteam", "type": "unrestricted", "id": "f2db41e1fa331b3e"},
		{"name": "emboss_5", "owner": "devteam", "type": "repository_suite_definition", "id": "0a9ec6d2f0b2b0c1"},
		{"name": "bowtie2", "owner": "iuc", "type": "unrestricted", "id": "1b2c3d4e5f60718a"},
		{"name": "package_samtools_0_1_19", "owner": "devteam", "type": "tool_dependency_definition", "id": "9e8d7c6b5a4f3e2d"}
	]`
)

type registryServer struct {
	requestCount  atomic.Int32
	failuresFirst int32
	failureStatus int
	payload       string
}

func (server *registryServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	requestNumber := server.requestCount.Add(1)
	if request.URL.Path != testRepositoriesPathConstant || request.Method != http.MethodGet {
		responseWriter.WriteHeader(http.StatusNotFound)
		return
	}
	if requestNumber <= server.failuresFirst {
		responseWriter.WriteHeader(server.failureStatus)
		return
	}
	responseWriter.Header().Set("Content-Type", "application/json")
	_, _ = responseWriter.Write([]byte(server.payload))
}

func newTestClient(testInstance *testing.T, handler http.Handler, attempts int, logger *zap.Logger) *toolshed.Client {
	testInstance.Helper()
	server := httptest.NewServer(handler)
	testInstance.Cleanup(server.Close)

	client, clientError := toolshed.NewClient(
		toolshed.ClientConfiguration{BaseURL: server.URL + "/", Attempts: attempts, RetryDelay: testRetryDelayConstant},
		toolshed.ClientDependencies{HTTPClient: server.Client(), Logger: logger},
	)
	require.NoError(testInstance, clientError)
	return client
}

func TestClientListRepositoriesFiltersByOwnerInRegistryOrder(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zap.InfoLevel)
	server := &registryServer{payload: testRegistryPayloadConstant}
	client := newTestClient(testInstance, server, 1, zap.New(observerCore))

	repositories, listError := client.ListRepositories(context.Background(), testOwnerConstant)
	require.NoError(testInstance, listError)

	require.Equal(testInstance, []toolshed.Repository{
		{Name: "bwa", Owner: "devteam", Type: toolshed.RepositoryTypeUnrestricted, Identifier: "f2db41e1fa331b3e"},
		{Name: "emboss_5", Owner: "devteam", Type: toolshed.RepositoryTypeSuiteDefinition, Identifier: "0a9ec6d2f0b2b0c1"},
		{Name: "package_samtools_0_1_19", Owner: "devteam", Type: toolshed.RepositoryTypeToolDependencyDefinition, Identifier: "9e8d7c6b5a4f3e2d"},
	}, repositories)

	require.Len(testInstance, observedLogs.All(), 1)
	contextMap := observedLogs.All()[0].ContextMap()
	require.EqualValues(testInstance, 4, contextMap["total_repositories"])
	require.EqualValues(testInstance, 3, contextMap["owned_repositories"])
}

func TestClientListRepositoriesRetryPolicy(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		failuresFirst        int32
		failureStatus        int
		payload              string
		attempts             int
		expectError          bool
		expectedErrorTarget  any
		expectedRequestCount int32
	}{
		{
			name:                 "transient_server_error_recovers",
			failuresFirst:        2,
			failureStatus:        http.StatusServiceUnavailable,
			payload:              testRegistryPayloadConstant,
			attempts:             3,
			expectedRequestCount: 3,
		},
		{
			name:                 "server_errors_exhaust_attempts",
			failuresFirst:        5,
			failureStatus:        http.StatusBadGateway,
			payload:              testRegistryPayloadConstant,
			attempts:             2,
			expectError:          true,
			expectedErrorTarget:  &toolshed.UnexpectedStatusError{},
			expectedRequestCount: 2,
		},
		{
			name:                 "client_error_is_fatal",
			failuresFirst:        5,
			failureStatus:        http.StatusForbidden,
			payload:              testRegistryPayloadConstant,
			attempts:             3,
			expectError:          true,
			expectedErrorTarget:  &toolshed.UnexpectedStatusError{},
			expectedRequestCount: 1,
		},
		{
			name:                 "malformed_payload_is_fatal",
			payload:              `{"not": "a list"}`,
			attempts:             3,
			expectError:          true,
			expectedErrorTarget:  &toolshed.ResponseDecodingError{},
			expectedRequestCount: 1,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := &registryServer{
				failuresFirst: testCase.failuresFirst,
				failureStatus: testCase.failureStatus,
				payload:       testCase.payload,
			}
			client := newTestClient(testInstance, server, testCase.attempts, zap.NewNop())

			repositories, listError := client.ListRepositories(context.Background(), testOwnerConstant)
			if testCase.expectError {
				require.Error(testInstance, listError)
				require.ErrorAs(testInstance, listError, testCase.expectedErrorTarget)
				require.Nil(testInstance, repositories)
			} else {
				require.NoError(testInstance, listError)
				require.Len(testInstance, repositories, 3)
			}
			require.Equal(testInstance, testCase.expectedRequestCount, server.requestCount.Load())
		})
	}
}

func TestClientListRepositoriesReturnsFatalRegistryErrorsUnchanged(testInstance *testing.T) {
	server := &registryServer{failuresFirst: 5, failureStatus: http.StatusNotFound, payload: testRegistryPayloadConstant}
	client := newTestClient(testInstance, server, 3, zap.NewNop())

	_, listError := client.ListRepositories(context.Background(), testOwnerConstant)

	var statusError toolshed.UnexpectedStatusError
	require.ErrorAs(testInstance, listError, &statusError)
	require.Equal(testInstance, http.StatusNotFound, statusError.StatusCode)
	require.Equal(testInstance, statusError.Error(), listError.Error())
	require.EqualValues(testInstance, 1, server.requestCount.Load())
}

func TestClientListRepositoriesHonorsCancellation(testInstance *testing.T) {
	server := &registryServer{payload: testRegistryPayloadConstant}
	client := newTestClient(testInstance, server, 3, zap.NewNop())

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, listError := client.ListRepositories(cancelledContext, testOwnerConstant)
	require.ErrorIs(testInstance, listError, context.Canceled)
}

func TestClientValidation(testInstance *testing.T) {
	_, missingBaseError := toolshed.NewClient(toolshed.ClientConfiguration{}, toolshed.ClientDependencies{})
	require.ErrorIs(testInstance, missingBaseError, toolshed.ErrBaseURLRequired)

	client, clientError := toolshed.NewClient(toolshed.ClientConfiguration{BaseURL: "https://toolshed.example.org/"}, toolshed.ClientDependencies{})
	require.NoError(testInstance, clientError)
	require.Equal(testInstance, "https://toolshed.example.org", client.BaseURL())

	_, ownerError := client.ListRepositories(context.Background(), "  ")
	require.ErrorIs(testInstance, ownerError, toolshed.ErrOwnerRequired)

	cloneURL := client.CloneURL(toolshed.Repository{Name: "bwa", Owner: "devteam"})
	require.Equal(testInstance, "https://toolshed.example.org/repos/devteam/bwa", cloneURL)
}
