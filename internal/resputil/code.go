package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Requested report slice does not exist
	ReportNotFound ErrorCode = 40401

	// No pipeline pass has published a report yet
	ReportNotReady ErrorCode = 50301

	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
