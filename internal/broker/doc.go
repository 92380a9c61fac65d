// Package broker carries the pipeline's messages over Redis Streams. Each
// queue is a stream read through a shared consumer group, so delivery is
// at-least-once with broker-side offsets and delivery counts. Consumers
// settle messages by error classification: acknowledge, leave pending for
// redelivery, or copy to the queue's dead-letter stream.
package broker
