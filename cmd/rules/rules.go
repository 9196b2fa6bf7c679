package rules

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"autoexit/src/model"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the rule CRUD surface the command needs.
type Store interface {
	Create(ctx context.Context, rule *model.ManagementRule) error
	ListByUser(ctx context.Context, userID string) ([]model.ManagementRule, error)
	Delete(ctx context.Context, id uint, userID string) (bool, error)
}

type HistoryStore interface {
	FindByRuleID(ctx context.Context, ruleID uint, limit int) ([]model.ExitExecutionLog, error)
}

// AddInput carries the flags of "rules add".
type AddInput struct {
	UserID       string
	Symbol       string
	Exchange     string
	Product      string
	Group        bool
	ExitType     string
	MaxLoss      float64
	TargetProfit float64

	Indicator string
	Period    int
	Condition string
}

// Rules implements the management rule subcommands.
type Rules struct {
	Log   *logrus.Entry
	Store Store
	Exits HistoryStore
	Out   io.Writer
}

// BuildRule turns command input into a rule. Zero thresholds stay unset.
func BuildRule(in AddInput) (*model.ManagementRule, error) {
	rule := &model.ManagementRule{
		UserID:      strings.TrimSpace(in.UserID),
		Symbol:      strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Exchange:    strings.ToUpper(strings.TrimSpace(in.Exchange)),
		Product:     strings.ToUpper(strings.TrimSpace(in.Product)),
		IsGroupRule: in.Group,
		ExitType:    strings.ToUpper(strings.TrimSpace(in.ExitType)),
	}
	if in.MaxLoss != 0 {
		v := in.MaxLoss
		rule.MaxLoss = &v
	}
	if in.TargetProfit != 0 {
		v := in.TargetProfit
		rule.TargetProfit = &v
	}
	if in.Indicator != "" {
		b, err := json.Marshal(model.CandleCondition{
			Indicator: in.Indicator,
			Period:    in.Period,
			Condition: in.Condition,
		})
		if err != nil {
			return nil, fmt.Errorf("encode candle condition: %w", err)
		}
		cc := string(b)
		rule.CandleCondition = &cc
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *Rules) Add(ctx context.Context, in AddInput) (*model.ManagementRule, error) {
	rule, err := BuildRule(in)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Create(ctx, rule); err != nil {
		return nil, err
	}

	r.Log.WithFields(map[string]interface{}{
		"rule_id": rule.ID,
		"user_id": rule.UserID,
		"symbol":  rule.Symbol,
	}).Info("rule created")
	_, _ = fmt.Fprintf(r.Out, "created rule %d\n", rule.ID)
	return rule, nil
}

func (r *Rules) List(ctx context.Context, userID string) error {
	rules, err := r.Store.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(r.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSYMBOL\tEXCHANGE\tPRODUCT\tGROUP\tEXIT\tMAX_LOSS\tTARGET\tACTIVE\tLAST_TRIGGERED")
	for _, rule := range rules {
		last := "-"
		if rule.LastTriggered != nil {
			last = rule.LastTriggered.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%s\t%s\t%t\t%s\n",
			rule.ID, rule.Symbol, rule.Exchange, rule.Product, rule.IsGroupRule, rule.ExitType,
			formatAmount(rule.MaxLoss), formatAmount(rule.TargetProfit), rule.IsActive, last)
	}
	return w.Flush()
}

func (r *Rules) Delete(ctx context.Context, id uint, userID string) error {
	deleted, err := r.Store.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("rule %d not found for user %s", id, userID)
	}
	_, _ = fmt.Fprintf(r.Out, "deleted rule %d\n", id)
	return nil
}

// History prints the exit attempts recorded for a rule, newest first.
func (r *Rules) History(ctx context.Context, ruleID uint, limit int) error {
	logs, err := r.Exits.FindByRuleID(ctx, ruleID, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(r.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REQUESTED\tSYMBOL\tSIDE\tQTY\tPNL\tREASON\tSTATUS\tORDER_ID\tERROR")
	for _, l := range logs {
		errMsg := ""
		if l.ErrorMessage != nil {
			errMsg = *l.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\t%s\t%s\n",
			l.RequestedAt.Format("2006-01-02 15:04:05"), l.Symbol, l.Side, l.Quantity, l.Pnl,
			l.Reason, l.Status, l.BrokerOrderID, errMsg)
	}
	return w.Flush()
}

func formatAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
