package natsstore

import (
	"go.opentelemetry.io/otel/attribute"
)

const messagingSystem = "nats"

// Attribute keys following the OTel messaging semantic conventions.
const (
	attrMessagingSystem          = "messaging.system"
	attrMessagingOperationName   = "messaging.operation.name"
	attrMessagingOperationType   = "messaging.operation.type"
	attrMessagingDestinationName = "messaging.destination.name"
	attrMessagingMessageID       = "messaging.message.id"
	attrMessagingMessageBodySize = "messaging.message.body.size"
	attrNATSStreamSequence       = "nats.stream.sequence"
	attrNATSDuplicate            = "nats.duplicate"
	attrNATSBucket               = "nats.kv.bucket"
	attrNATSRevision             = "nats.kv.revision"
)

const (
	opPublish = "publish"
	opSend    = "send"
	opPut     = "put"
)

func publishAttributes(subject, msgID string, bodySize int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationName, opPublish),
		attribute.String(attrMessagingOperationType, opSend),
		attribute.String(attrMessagingDestinationName, subject),
	}
	if msgID != "" {
		attrs = append(attrs, attribute.String(attrMessagingMessageID, msgID))
	}
	if bodySize > 0 {
		attrs = append(attrs, attribute.Int(attrMessagingMessageBodySize, bodySize))
	}

	return attrs
}

func kvAttributes(bucket, key string, bodySize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(attrMessagingSystem, messagingSystem),
		attribute.String(attrMessagingOperationName, opPut),
		attribute.String(attrNATSBucket, bucket),
		attribute.String(attrMessagingMessageID, key),
		attribute.Int(attrMessagingMessageBodySize, bodySize),
	}
}
