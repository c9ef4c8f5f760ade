package service

import "time"

func (v *InitDataVerifier) SetClock(now func() time.Time)   { v.now = now }
func (s *ActionTokenService) SetClock(now func() time.Time) { s.now = now }
func (s *TaskService) SetClock(now func() time.Time)        { s.now = now }
func (s *WithdrawalService) SetClock(now func() time.Time)  { s.now = now }
func (s *UserService) SetClock(now func() time.Time)        { s.now = now }
func (s *CommissionService) SetClock(now func() time.Time)  { s.now = now }

func (s *LedgerService) SetClock(now func() time.Time) { s.now = now }

// SetPicker fixes the wheel draw.
func (s *LedgerService) SetPicker(pick func(n int) int) { s.pick = pick }
