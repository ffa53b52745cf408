package service

import "fmt"

// Мемо исходящих переводов: сторонним системам по ним видно,
// какое действие движка породило выплату.

func payoutMemo(jobID int64) string    { return fmt.Sprintf("payout:%d", jobID) }
func milestoneMemo(jobID int64) string { return fmt.Sprintf("milestone:%d", jobID) }
func refundMemo(jobID int64) string    { return fmt.Sprintf("refund:%d", jobID) }
func arbFeeMemo(jobID int64) string    { return fmt.Sprintf("arbfee:%d", jobID) }
func unstakeMemo() string              { return "unstake" }
