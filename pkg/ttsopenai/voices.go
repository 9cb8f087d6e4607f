package ttsopenai

// Voice is one entry of the published voice catalog.
type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// Voices returns the fixed catalog of supported voices. The provider's
// catalog is static, so no network call is made.
func Voices() []Voice {
	return []Voice{
		{VoiceID: "OA001", Name: "Alloy"},
		{VoiceID: "OA002", Name: "Echo"},
		{VoiceID: "OA003", Name: "Fable"},
		{VoiceID: "OA004", Name: "Onyx"},
		{VoiceID: "OA005", Name: "Nova"},
		{VoiceID: "OA006", Name: "Shimmer"},
	}
}
