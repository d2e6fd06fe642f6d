package gateway

import (
	"net/http"
	"regexp"
	"strings"

	"comlake-node/node/ingest"
	"comlake-node/types"
)

const headerPrefix = "x-comlake-"

var topicSeparator = regexp.MustCompile(`\s*,\s*`)

// metadataFromHeaders maps request headers onto ingestion metadata.
// Content-Length and Content-Type give length and type; x-comlake-<key>
// headers give <key>, with topics split on commas. x-comlake-length and
// x-comlake-type are ignored so they cannot contradict the real values.
func metadataFromHeaders(header http.Header, contentLength int64) map[string]interface{} {
	md := make(map[string]interface{})
	if contentLength >= 0 {
		md[ingest.FieldLength] = contentLength
	}

	for name, values := range header {
		if len(values) == 0 {
			continue
		}
		key := strings.ToLower(name)
		value := strings.Join(values, ",")

		switch key {
		case "content-type":
			md[ingest.FieldType] = value
		case headerPrefix + ingest.FieldLength, headerPrefix + ingest.FieldType:
		case headerPrefix + types.FieldTopics:
			md[types.FieldTopics] = splitTopics(value)
		default:
			if strings.HasPrefix(key, headerPrefix) && len(key) > len(headerPrefix) {
				md[key[len(headerPrefix):]] = value
			}
		}
	}
	return md
}

func splitTopics(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	return topicSeparator.Split(value, -1)
}
