// pkg/errors/ingest.go
package errors

// Ingestion and processing error codes
const (
	// IngestErrValidation indicates a malformed notification payload
	IngestErrValidation = "INGEST_VALIDATION"
	// IngestErrDuplicate indicates a notification for an already recorded transaction
	IngestErrDuplicate = "INGEST_DUPLICATE"
	// IngestErrEnqueue indicates a failure to enqueue a processing job
	IngestErrEnqueue = "INGEST_ENQUEUE"
	// ProcessingErrMissingRecord indicates a job referenced a transaction that does not exist
	ProcessingErrMissingRecord = "PROCESSING_MISSING_RECORD"
	// ProcessingErrUpdate indicates the settlement transition could not be persisted
	ProcessingErrUpdate = "PROCESSING_UPDATE"
	// QueueErrConnection indicates a queue connection error
	QueueErrConnection = "QUEUE_CONNECTION"
	// QueueErrPublish indicates a queue publish error
	QueueErrPublish = "QUEUE_PUBLISH"
	// QueueErrConsume indicates a queue consume error
	QueueErrConsume = "QUEUE_CONSUME"
)

// Ingest domain name
const IngestDomain = "ingest"

// Processing domain name
const ProcessingDomain = "processing"

// Queue domain name
const QueueDomain = "queue"

// NewIngestError creates a new ingestion error
func NewIngestError(code string, message string, err error) error {
	return &Error{
		Domain:   IngestDomain,
		Code:     code,
		Message:  message,
		Original: err,
	}
}

// NewProcessingError creates a new processing error
func NewProcessingError(code string, message string, err error) error {
	return &Error{
		Domain:   ProcessingDomain,
		Code:     code,
		Message:  message,
		Original: err,
	}
}

// QueueWrap wraps an error with queue domain
func QueueWrap(err error, operation string, code string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Domain:    QueueDomain,
		Operation: operation,
		Code:      code,
		Original:  err,
	}
}

// IsIngestError checks if an error is an ingestion error with the given code
func IsIngestError(err error, code string) bool {
	var domainErr *Error
	if As(err, &domainErr) {
		return domainErr.Domain == IngestDomain && domainErr.Code == code
	}
	return false
}

// IsProcessingError checks if an error is a processing error with the given code
func IsProcessingError(err error, code string) bool {
	var domainErr *Error
	if As(err, &domainErr) {
		return domainErr.Domain == ProcessingDomain && domainErr.Code == code
	}
	return false
}
