package report

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"mes.GO/core/errs"
	reportEntity "mes.GO/model/entity/report"
	systemEntity "mes.GO/model/entity/system"
)

// DefaultRule mirrors the factory's standing auto-approval settings.
func DefaultRule() systemEntity.AutoApprovalRule {
	return systemEntity.AutoApprovalRule{
		Name:             "default",
		Enabled:          true,
		IntervalMinutes:  30,
		MaxWorkHours:     12,
		MaxDefectRate:    5,
		MaxOvertimeHours: 4,
	}
}

type AutoApproveResult struct {
	Rule     string   `json:"rule"`
	Checked  int      `json:"checked"`
	Approved int      `json:"approved"`
	Skipped  int      `json:"skipped"`
	Reasons  []string `json:"reasons,omitempty"`
}

// DefectRate is defect / (work + defect) in percent, 0 when nothing was produced.
func DefectRate(rep *reportEntity.Report) float64 {
	total := rep.WorkQuantity + rep.DefectQuantity
	if total == 0 {
		return 0
	}
	return float64(rep.DefectQuantity) / float64(total) * 100
}

// Eligible reports whether rule allows rep to be approved automatically.
// Exclusions win over every threshold. The returned string explains a refusal.
func Eligible(rule systemEntity.AutoApprovalRule, rep *reportEntity.Report) (bool, string) {
	for _, who := range rep.Reporters() {
		if slices.Contains(rule.ExcludedOperators, who) {
			return false, fmt.Sprintf("report %d: reporter %s excluded", rep.ID, who)
		}
	}
	for _, name := range rule.ExcludedProcesses {
		if name == rep.ProcessName {
			return false, fmt.Sprintf("report %d: process %s excluded", rep.ID, name)
		}
	}
	if rep.WorkHours > rule.MaxWorkHours {
		return false, fmt.Sprintf("report %d: work hours %.2f > %.2f", rep.ID, rep.WorkHours, rule.MaxWorkHours)
	}
	if rate := DefectRate(rep); rate > rule.MaxDefectRate {
		return false, fmt.Sprintf("report %d: defect rate %.2f%% > %.2f%%", rep.ID, rate, rule.MaxDefectRate)
	}
	if rep.OvertimeHours > rule.MaxOvertimeHours {
		return false, fmt.Sprintf("report %d: overtime %.2f > %.2f", rep.ID, rep.OvertimeHours, rule.MaxOvertimeHours)
	}
	return true, ""
}

// AutoApprove approves every pending report that passes rule. Others stay pending.
func (s *Service) AutoApprove(ctx context.Context, rule systemEntity.AutoApprovalRule) (*AutoApproveResult, error) {
	pending, err := s.repo.WithTx(s.db.WithContext(ctx)).ListPending()
	if err != nil {
		return nil, err
	}
	res := &AutoApproveResult{Rule: rule.Name, Checked: len(pending)}
	by := "auto-approval:" + rule.Name
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rep := &pending[i]
		ok, reason := Eligible(rule, rep)
		if !ok {
			res.Skipped++
			res.Reasons = append(res.Reasons, reason)
			continue
		}
		if _, err := s.Approve(ctx, rep.ID, by); err != nil {
			// another approver got there first
			if errors.Is(err, errs.ErrIllegalTransition) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Approved++
	}
	s.log.Info("auto approval finished",
		zap.String("rule", rule.Name),
		zap.Int("checked", res.Checked),
		zap.Int("approved", res.Approved),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
