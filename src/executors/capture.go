package executors

import (
	"context"
	"runtime/debug"
	"time"

	"autoexit/src/model"

	jsoniter "github.com/json-iterator/go"
	logger "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	serviceName = "autoexit"

	LevelWarn  = "warn"
	LevelError = "error"
)

// Capture records an engine exception, logs it locally, and persists it when
// a recorder is configured.
func Capture(
	ctx context.Context,
	repo ExceptionRecorder,
	module string,
	method string,
	level string,
	err error,
	rule *model.ManagementRule,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   serviceName,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}
	if rule != nil {
		id := rule.ID
		exc.RuleID = &id
		exc.UserID = rule.UserID
	}

	fields := map[string]interface{}{
		"service": serviceName,
		"module":  module,
		"method":  method,
		"level":   level,
	}
	if rule != nil {
		fields["rule_id"] = rule.ID
		fields["user_id"] = rule.UserID
	}

	// Local log
	logger.WithFields(fields).WithError(err).Error("System exception captured")

	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
