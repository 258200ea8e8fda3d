// Package models defines the core domain models for the tontine ledger.
//
// # Models
//
//   - ContributionRun: a rotating-contribution session with a per-part unit amount
//   - Membership: a user's enrollment in a run, weighted by a number of parts
//   - Contribution: one scheduled period obligation, tied to a month and a membership
//   - LedgerEntry: one user's payment record for a contribution
//   - User: a registered account that can join runs and win payouts
//
// # Design Principles
//
// 1. **IDs, not pointers**: relationships are expressed with ID strings (UUID format)
// 2. **Exact money**: amounts are decimal.Decimal, never float64
// 3. **Calendar dates**: months and payment dates are dates at UTC midnight
// 4. **Monotonic status**: ledger entries only move PENDING -> PAID
//
// # Schedule shape
//
// A run with memberships m_1..m_k holding p_1..p_k parts is scheduled over
// Σp_i periods spaced 30 days apart. Every period gets one Contribution per
// membership, so a schedule holds (Σp_i) × k contributions. Period-level views
// are derived by grouping contributions by month (see package calculator).
package models
