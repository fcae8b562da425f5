package sendbatch

// Response messages returned in the handler envelope.
const (
	MsgInvalidEvent = "Invalid event: Missing 'Records' key"
	MsgNoTargets    = "No valid targets found"
	MsgSuccess      = "Batch processing completed successfully"
	MsgPartial      = "Batch partially processed"
	MsgFailure      = "Failed processing the batches"
	MsgUnexpected   = "An error occurred while processing the batch"
)

// targetErrorDetail labels every entry of FailedBatches.
const targetErrorDetail = "Error initiating emails"
