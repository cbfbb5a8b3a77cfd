package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/jaller94/andstatus/connector"
)

// CommandResult is the embedded execution snapshot of a command. It
// rides along in the property bag and across retries.
type CommandResult struct {
	RetryCount   int
	LastExecuted int64
	Downloaded   int
	IOErrors     int
	ParseErrors  int
	ErrorMessage string
	StatusCode   connector.StatusCode

	RateLimitRemaining int
	RateLimitLimit     int
}

func (r *CommandResult) HasError() bool {
	return r.ErrorMessage != "" || r.IOErrors > 0 || r.ParseErrors > 0
}

// TakeError folds an execution failure into the snapshot.
func (r *CommandResult) TakeError(err error) {
	if err == nil {
		return
	}
	r.ErrorMessage = err.Error()
	r.StatusCode = connector.StatusOf(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.IOErrors++
	case r.StatusCode == connector.StatusParseError:
		r.ParseErrors++
	case r.StatusCode == connector.StatusIOError, r.StatusCode == connector.StatusUnknown:
		r.IOErrors++
	}
}

// TakeSuccess clears the error state, retry history stays for
// diagnostics.
func (r *CommandResult) TakeSuccess(downloaded int) {
	r.ErrorMessage = ""
	r.StatusCode = connector.StatusUnknown
	r.Downloaded += downloaded
}

const (
	propRetryCount         = "retriesLeft"
	propLastExecuted       = "lastExecutedDate"
	propDownloaded         = "downloadedCount"
	propIOErrors           = "numIoExceptions"
	propParseErrors        = "numParseExceptions"
	propErrorMessage       = "errorMessage"
	propStatusCode         = "statusCode"
	propRateLimitRemaining = "remainingHits"
	propRateLimitLimit     = "hourlyLimit"
)

func (r *CommandResult) toProperties(bag map[string]string) {
	putInt := func(key string, value int) {
		if value != 0 {
			bag[key] = strconv.Itoa(value)
		}
	}
	putInt(propRetryCount, r.RetryCount)
	putInt(propDownloaded, r.Downloaded)
	putInt(propIOErrors, r.IOErrors)
	putInt(propParseErrors, r.ParseErrors)
	putInt(propRateLimitRemaining, r.RateLimitRemaining)
	putInt(propRateLimitLimit, r.RateLimitLimit)
	if r.LastExecuted != 0 {
		bag[propLastExecuted] = strconv.FormatInt(r.LastExecuted, 10)
	}
	if r.ErrorMessage != "" {
		bag[propErrorMessage] = r.ErrorMessage
	}
	if r.StatusCode != connector.StatusUnknown {
		bag[propStatusCode] = r.StatusCode.String()
	}
}

func resultFromProperties(bag map[string]string) CommandResult {
	getInt := func(key string) int {
		n, _ := strconv.Atoi(bag[key])
		return n
	}
	r := CommandResult{
		RetryCount:         getInt(propRetryCount),
		Downloaded:         getInt(propDownloaded),
		IOErrors:           getInt(propIOErrors),
		ParseErrors:        getInt(propParseErrors),
		RateLimitRemaining: getInt(propRateLimitRemaining),
		RateLimitLimit:     getInt(propRateLimitLimit),
		ErrorMessage:       bag[propErrorMessage],
		StatusCode:         connector.StatusCodeFromString(bag[propStatusCode]),
	}
	r.LastExecuted, _ = strconv.ParseInt(bag[propLastExecuted], 10, 64)
	return r
}
