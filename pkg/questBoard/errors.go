package questBoard

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a board operation wraps exactly one of these.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrStateConflict        = errors.New("state conflict")
	ErrSystemHalted         = errors.New("system halted")
	ErrConfigurationMissing = errors.New("configuration missing")
)

var (
	ErrCallerNotOwner   = fmt.Errorf("%w: caller is not the owner", ErrUnauthorized)
	ErrCallerNotAllowed = fmt.Errorf("%w: caller is not the owner or a manager", ErrUnauthorized)
	ErrCallerNotCreator = fmt.Errorf("%w: caller is not the quest creator", ErrUnauthorized)

	ErrUnknownQuest       = fmt.Errorf("%w: unknown quest", ErrInvalidReference)
	ErrInvalidPeriod      = fmt.Errorf("%w: period id is zero or not aligned", ErrInvalidReference)
	ErrPeriodNotOver      = fmt.Errorf("%w: period has not ended", ErrInvalidReference)
	ErrEmptyPeriod        = fmt.Errorf("%w: no quest is scheduled in the period", ErrInvalidReference)
	ErrPeriodNotScheduled = fmt.Errorf("%w: quest has no period with this id", ErrInvalidReference)
	ErrInvalidGauge       = fmt.Errorf("%w: gauge is not valid", ErrInvalidReference)
	ErrZeroAddress        = fmt.Errorf("%w: zero address", ErrInvalidReference)
	ErrUnknownDistributor = fmt.Errorf("%w: unknown distributor", ErrInvalidReference)
	ErrEmptyMerkleRoot    = fmt.Errorf("%w: merkle root is empty", ErrInvalidReference)

	ErrNullAmount          = fmt.Errorf("%w: amount is zero", ErrInvalidAmount)
	ErrIncorrectTotal      = fmt.Errorf("%w: reward total does not match the quest terms", ErrInvalidAmount)
	ErrIncorrectFee        = fmt.Errorf("%w: fee does not match the platform fee", ErrInvalidAmount)
	ErrIncorrectDuration   = fmt.Errorf("%w: duration must be at least one period", ErrInvalidAmount)
	ErrObjectiveTooLow     = fmt.Errorf("%w: objective is below the minimum", ErrInvalidAmount)
	ErrRewardPerVoteTooLow = fmt.Errorf("%w: reward per vote is below the token minimum", ErrInvalidAmount)
	ErrFeeTooHigh          = fmt.Errorf("%w: platform fee is above the maximum", ErrInvalidAmount)
	ErrInsufficientFunds   = fmt.Errorf("%w: insufficient funds", ErrInvalidAmount)
	ErrLengthMismatch      = fmt.Errorf("%w: list lengths differ", ErrInvalidAmount)
	ErrEmptyList           = fmt.Errorf("%w: list is empty", ErrInvalidAmount)

	ErrPeriodNotActive          = fmt.Errorf("%w: quest period is not ACTIVE", ErrStateConflict)
	ErrPeriodNotClosed          = fmt.Errorf("%w: quest period is not CLOSED", ErrStateConflict)
	ErrPeriodAlreadyDistributed = fmt.Errorf("%w: quest period is already DISTRIBUTED", ErrStateConflict)
	ErrExpiredQuest             = fmt.Errorf("%w: quest has no current or future period", ErrStateConflict)
	ErrLowerRewardPerVote       = fmt.Errorf("%w: reward per vote must increase", ErrStateConflict)
	ErrLowerObjective           = fmt.Errorf("%w: objective must increase", ErrStateConflict)
	ErrAlreadyBlacklisted       = fmt.Errorf("%w: voter is already blacklisted", ErrStateConflict)
	ErrAlreadyManager           = fmt.Errorf("%w: address is already a manager", ErrStateConflict)
	ErrNotManager               = fmt.Errorf("%w: address is not a manager", ErrStateConflict)
	ErrAlreadyWhitelisted       = fmt.Errorf("%w: token is already whitelisted", ErrStateConflict)
	ErrCannotRecoverToken       = fmt.Errorf("%w: whitelisted tokens cannot be recovered", ErrStateConflict)
	ErrDistributorAlreadySet    = fmt.Errorf("%w: distributor is already set", ErrStateConflict)
	ErrNotKilled                = fmt.Errorf("%w: board is not killed", ErrStateConflict)
	ErrDistributorRejected      = fmt.Errorf("%w: distributor rejected the call", ErrStateConflict)

	ErrKilled              = fmt.Errorf("%w: board is killed", ErrSystemHalted)
	ErrAlreadyKilled       = fmt.Errorf("%w: board is already killed", ErrSystemHalted)
	ErrKillDelayExpired    = fmt.Errorf("%w: kill delay has expired", ErrSystemHalted)
	ErrKillDelayNotExpired = fmt.Errorf("%w: kill delay has not expired", ErrSystemHalted)

	ErrNoDistributor       = fmt.Errorf("%w: no distributor is set", ErrConfigurationMissing)
	ErrTokenNotWhitelisted = fmt.Errorf("%w: token is not whitelisted", ErrConfigurationMissing)
)

type ErrorKind string

const (
	ErrorKind_None                 ErrorKind = ""
	ErrorKind_Authorization        ErrorKind = "Authorization"
	ErrorKind_InvalidReference     ErrorKind = "InvalidReference"
	ErrorKind_InvalidAmount        ErrorKind = "InvalidAmount"
	ErrorKind_StateConflict        ErrorKind = "StateConflict"
	ErrorKind_SystemHalted         ErrorKind = "SystemHalted"
	ErrorKind_ConfigurationMissing ErrorKind = "ConfigurationMissing"
	ErrorKind_Internal             ErrorKind = "Internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrUnauthorized, ErrorKind_Authorization},
	{ErrInvalidReference, ErrorKind_InvalidReference},
	{ErrInvalidAmount, ErrorKind_InvalidAmount},
	{ErrStateConflict, ErrorKind_StateConflict},
	{ErrSystemHalted, ErrorKind_SystemHalted},
	{ErrConfigurationMissing, ErrorKind_ConfigurationMissing},
}

// KindOf returns the kind of a board error. Errors from collaborators such as the gauge
// controller or the store are Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKind_None
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ErrorKind_Internal
}
