package dto

type SupportReply struct {
	Intent string `json:"intent"`
	Reply  string `json:"reply"`
}

type SupportTopic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Intent      string `json:"intent"`
}

type SupportTopics struct {
	Topics []SupportTopic `json:"topics"`
}
