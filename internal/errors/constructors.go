package errors

// Convenience functions for common error patterns

// Invocation errors

func InvalidArguments(reason string) *DeployError {
	return New(CategoryValidation, SeverityFatal, "invalid arguments").
		WithContext("reason", reason)
}

func ProjectNotFound(path string) *DeployError {
	return New(CategoryValidation, SeverityFatal, "project path does not exist").
		WithContext("path", path)
}

// Config errors

func ConfigInvalid(field, reason string) *DeployError {
	return New(CategoryConfig, SeverityFatal, "invalid configuration").
		WithContext("field", field).
		WithContext("reason", reason)
}

func ConfigUnreadable(path string, cause error) *DeployError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "cannot read configuration").
		WithContext("path", path)
}

// Staging errors

func StagingFailed(operation, path string, cause error) *DeployError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "deploy staging failed").
		WithContext("operation", operation).
		WithContext("path", path)
}

func WorkspaceError(operation string, cause error) *DeployError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

// Source errors

func SourceRejected(reason string) *DeployError {
	return New(CategorySource, SeverityError, "project source rejected").
		WithContext("reason", reason)
}

func CloneFailed(url string, cause error) *DeployError {
	return WrapRetryable(cause, CategoryNetwork, SeverityError, "repository clone failed").
		WithContext("url", url)
}

// Internal errors

func InternalError(message string, cause error) *DeployError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
