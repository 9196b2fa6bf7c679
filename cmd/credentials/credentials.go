package credentials

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type Store interface {
	Upsert(ctx context.Context, userID, broker, apiKey string) error
}

// Credentials implements "credentials set": the API key is sealed before it
// is written and never echoed back.
type Credentials struct {
	Log   *logrus.Entry
	Store Store
	Out   io.Writer
}

func (c *Credentials) Set(ctx context.Context, userID, broker, apiKey string) error {
	userID = strings.TrimSpace(userID)
	apiKey = strings.TrimSpace(apiKey)
	if userID == "" || apiKey == "" {
		return fmt.Errorf("user and api key are required")
	}
	if broker == "" {
		broker = "openalgo"
	}

	if err := c.Store.Upsert(ctx, userID, broker, apiKey); err != nil {
		c.Log.WithError(err).WithField("user_id", userID).Error("Failed to store broker credential")
		return err
	}

	c.Log.WithFields(map[string]interface{}{
		"user_id": userID,
		"broker":  broker,
	}).Info("broker credential stored")
	_, _ = fmt.Fprintf(c.Out, "stored %s credential for %s\n", broker, userID)
	return nil
}
