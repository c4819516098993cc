package kafka

import "fmt"

// TopicPrefix is the standard prefix for all marketplace Kafka topics.
const TopicPrefix = "marketplace"

// Topic builds a topic name following the <prefix>.<domain>.<action> convention.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
