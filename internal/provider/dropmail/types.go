package dropmail

import "encoding/json"

const introduceSessionMutation = `mutation {
  introduceSession {
    id
    expiresAt
    addresses {
      address
    }
  }
}`

const sessionMailsQuery = `query ($id: ID!) {
  session(id: $id) {
    mails {
      fromAddr
      headerSubject
      text
      rawSize
      raw
      receivedAt
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// noDataError is returned by do when a 200 response carries no data member.
// Message holds the first GraphQL error, if any.
type noDataError struct {
	Message string
}

func (e *noDataError) Error() string {
	if e.Message == "" {
		return "no data in response"
	}
	return e.Message
}

type introduceSessionData struct {
	IntroduceSession *struct {
		ID        string `json:"id"`
		ExpiresAt string `json:"expiresAt"`
		Addresses []struct {
			Address string `json:"address"`
		} `json:"addresses"`
	} `json:"introduceSession"`
}

type sessionData struct {
	Session *struct {
		Mails []mailItem `json:"mails"`
	} `json:"session"`
}

type mailItem struct {
	FromAddr      string `json:"fromAddr"`
	HeaderSubject string `json:"headerSubject"`
	Text          string `json:"text"`
	RawSize       int64  `json:"rawSize"`
	Raw           string `json:"raw"`
	ReceivedAt    string `json:"receivedAt"`
}
