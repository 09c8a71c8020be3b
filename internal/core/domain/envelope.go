package domain

import "net/http"

// ReasonHeader carries ReasonOf the error next to a failed HTTP envelope.
const ReasonHeader = "X-Error-Reason"

// Envelope is the uniform reply shape of every synchronous call.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func OK[T any](data T, message string) Envelope[T] {
	return Envelope[T]{Data: data, Status: http.StatusOK, Message: message}
}

// Failure builds the envelope for err with its mapped status and message.
func Failure[T any](data T, err error) Envelope[T] {
	return Envelope[T]{Data: data, Status: StatusOf(err), Message: MessageOf(err)}
}

func (e Envelope[T]) Succeeded() bool {
	return e.Status == http.StatusOK
}
