package toolshed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"
)

const (
	repositoriesEndpointPathConstant      = "/api/repositories"
	cloneURLTemplateConstant              = "%s/repos/%s/%s"
	acceptHeaderNameConstant              = "Accept"
	acceptHeaderValueConstant             = "application/json"
	defaultRequestTimeoutConstant         = 60 * time.Second
	defaultAttemptsConstant               = 3
	defaultRetryDelayConstant             = 2 * time.Second
	baseURLRequiredMessageConstant        = "tool shed base URL required"
	ownerRequiredMessageConstant          = "repository owner required"
	invalidBaseURLTemplateConstant        = "invalid tool shed base URL %q: %w"
	requestErrorTemplateConstant          = "request to %s failed: %v"
	unexpectedStatusErrorTemplateConstant = "request to %s returned status %d"
	responseDecodingErrorTemplateConstant = "response from %s could not be decoded: %v"
	requestAttemptFailedMessageConstant   = "Tool Shed request attempt failed"
	repositoriesListedMessageConstant     = "Tool Shed repositories listed"
	logFieldEndpointConstant              = "endpoint"
	logFieldAttemptConstant               = "attempt"
	logFieldOwnerConstant                 = "owner"
	logFieldTotalRepositoriesConstant     = "total_repositories"
	logFieldOwnedRepositoriesConstant     = "owned_repositories"
)

var (
	// ErrBaseURLRequired indicates the client was configured without a registry endpoint.
	ErrBaseURLRequired = errors.New(baseURLRequiredMessageConstant)
	// ErrOwnerRequired indicates a listing was requested for an empty owner.
	ErrOwnerRequired = errors.New(ownerRequiredMessageConstant)
)

// HTTPClient performs HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// RequestError reports a transport failure.
type RequestError struct {
	Endpoint string
	Cause    error
}

// Error describes the transport failure.
func (requestError RequestError) Error() string {
	return fmt.Sprintf(requestErrorTemplateConstant, requestError.Endpoint, requestError.Cause)
}

// Unwrap exposes the transport error.
func (requestError RequestError) Unwrap() error {
	return requestError.Cause
}

// UnexpectedStatusError reports a non-2xx registry response.
type UnexpectedStatusError struct {
	Endpoint   string
	StatusCode int
}

// Error describes the unexpected status.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.Endpoint, statusError.StatusCode)
}

// Retryable reports whether the status indicates a transient server-side condition.
func (statusError UnexpectedStatusError) Retryable() bool {
	return statusError.StatusCode >= http.StatusInternalServerError || statusError.StatusCode == http.StatusTooManyRequests
}

// ResponseDecodingError reports a registry response that is not the expected JSON document.
type ResponseDecodingError struct {
	Endpoint string
	Cause    error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Endpoint, decodingError.Cause)
}

// Unwrap exposes the JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// ClientConfiguration describes the registry endpoint and retry policy.
type ClientConfiguration struct {
	BaseURL        string
	RequestTimeout time.Duration
	Attempts       int
	RetryDelay     time.Duration
}

// ClientDependencies supplies optional collaborators. Nil values fall back to production defaults.
type ClientDependencies struct {
	HTTPClient HTTPClient
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Client lists repositories from a Tool Shed.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	clock      clock.Clock
	logger     *zap.Logger
	attempts   int
	retryDelay time.Duration
}

// NewClient constructs a registry client.
func NewClient(configuration ClientConfiguration, dependencies ClientDependencies) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if len(baseURL) == 0 {
		return nil, ErrBaseURLRequired
	}
	if _, parseError := url.ParseRequestURI(baseURL); parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, configuration.BaseURL, parseError)
	}

	requestTimeout := configuration.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeoutConstant
	}
	attempts := configuration.Attempts
	if attempts <= 0 {
		attempts = defaultAttemptsConstant
	}
	retryDelay := configuration.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelayConstant
	}

	httpClient := dependencies.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	wallClock := dependencies.Clock
	if wallClock == nil {
		wallClock = clock.WallClock
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		clock:      wallClock,
		logger:     logger,
		attempts:   attempts,
		retryDelay: retryDelay,
	}, nil
}

// BaseURL returns the registry endpoint the client reads from.
func (client *Client) BaseURL() string {
	return client.baseURL
}

// CloneURL returns the Mercurial clone location of the repository.
func (client *Client) CloneURL(repository Repository) string {
	return fmt.Sprintf(cloneURLTemplateConstant, client.baseURL, repository.Owner, repository.Name)
}

// ListRepositories returns the repositories whose owner equals owner, in registry order.
func (client *Client) ListRepositories(executionContext context.Context, owner string) ([]Repository, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return nil, ErrOwnerRequired
	}

	endpoint := client.baseURL + repositoriesEndpointPathConstant

	var allRepositories []Repository
	var lastAttemptError error
	callError := retry.Call(retry.CallArgs{
		Func: func() error {
			repositories, fetchError := client.fetchRepositories(executionContext, endpoint)
			if fetchError != nil {
				lastAttemptError = fetchError
				return fetchError
			}
			allRepositories = repositories
			return nil
		},
		IsFatalError: isFatalRegistryError,
		NotifyFunc: func(lastError error, attempt int) {
			client.logger.Debug(
				requestAttemptFailedMessageConstant,
				zap.String(logFieldEndpointConstant, endpoint),
				zap.Int(logFieldAttemptConstant, attempt),
				zap.Error(lastError),
			)
		},
		Attempts: client.attempts,
		Delay:    client.retryDelay,
		Clock:    client.clock,
		Stop:     executionContext.Done(),
	})
	if callError != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}
		if retry.IsAttemptsExceeded(callError) {
			return nil, retry.LastError(callError)
		}
		// Fatal errors come back traced; hand callers the registry error itself.
		if lastAttemptError != nil {
			return nil, lastAttemptError
		}
		return nil, callError
	}

	ownedRepositories := make([]Repository, 0, len(allRepositories))
	for _, repository := range allRepositories {
		if repository.Owner == trimmedOwner {
			ownedRepositories = append(ownedRepositories, repository)
		}
	}

	client.logger.Info(
		repositoriesListedMessageConstant,
		zap.String(logFieldEndpointConstant, endpoint),
		zap.String(logFieldOwnerConstant, trimmedOwner),
		zap.Int(logFieldTotalRepositoriesConstant, len(allRepositories)),
		zap.Int(logFieldOwnedRepositoriesConstant, len(ownedRepositories)),
	)

	return ownedRepositories, nil
}

func (client *Client) fetchRepositories(executionContext context.Context, endpoint string) ([]Repository, error) {
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, endpoint, nil)
	if requestError != nil {
		return nil, RequestError{Endpoint: endpoint, Cause: requestError}
	}
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return nil, RequestError{Endpoint: endpoint, Cause: responseError}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, UnexpectedStatusError{Endpoint: endpoint, StatusCode: response.StatusCode}
	}

	var repositories []Repository
	if decodeError := json.NewDecoder(response.Body).Decode(&repositories); decodeError != nil {
		return nil, ResponseDecodingError{Endpoint: endpoint, Cause: decodeError}
	}

	return repositories, nil
}

func isFatalRegistryError(candidate error) bool {
	if errors.Is(candidate, context.Canceled) || errors.Is(candidate, context.DeadlineExceeded) {
		return true
	}

	var statusError UnexpectedStatusError
	if errors.As(candidate, &statusError) {
		return !statusError.Retryable()
	}

	var requestError RequestError
	return !errors.As(candidate, &requestError)
}
