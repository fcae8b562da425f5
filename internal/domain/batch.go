package domain

// BatchMetadata travels with every published batch.
type BatchMetadata struct {
	UploadedBy string `json:"UploadedBy"`
	Timestamp  string `json:"Timestamp"`
}

// BatchMessage is the queue payload for one batch of recipients.
type BatchMessage struct {
	BatchID    string        `json:"BatchId"`
	Recipients []Row         `json:"Recipients"`
	Metadata   BatchMetadata `json:"Metadata"`
}

// BatchStatusQueued is the only status written at publish time; the
// downstream consumer advances it.
const BatchStatusQueued = "queued"

// BatchRecord is the tracker row written for every published batch.
type BatchRecord struct {
	BatchID        string `dynamodbav:"batch_id" json:"batch_id"`
	RunID          string `dynamodbav:"run_id" json:"run_id"`
	Target         string `dynamodbav:"target" json:"target"`
	RecipientCount int    `dynamodbav:"recipient_count" json:"recipient_count"`
	UploadedBy     string `dynamodbav:"uploaded_by" json:"uploaded_by"`
	Timestamp      string `dynamodbav:"timestamp" json:"timestamp"`
	Status         string `dynamodbav:"status" json:"status"`
	MessageID      string `dynamodbav:"message_id" json:"message_id"`
}

// TemplateMetadata is the metadata-table item describing a template's
// placeholders.
type TemplateMetadata struct {
	TemplateKey string `dynamodbav:"template_key" json:"template_key"`
	Fields      string `dynamodbav:"fields" json:"fields"`
}
