package domain

// GenerateEmailResponse is the body returned by the mailbox creation endpoint.
type GenerateEmailResponse struct {
	GeneratedEmail     string `json:"generatedEmail"`
	GeneratedSessionID string `json:"generatedSessionID"`
	Expiration         int64  `json:"expiration"`
}

type FetchEmailsRequest struct {
	SessionID string `json:"sessionID"`
}

type FetchEmailsResponse struct {
	Mails []Message `json:"mails"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
