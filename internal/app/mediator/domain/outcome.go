package domain

// Outcome 單次調解的最終結果，回報給觸發的事件
type Outcome uint8

const (
	OutcomeHandledMoved Outcome = iota + 1
	OutcomeHandledNoOp
	OutcomeAuthorizationRequired
	OutcomeInsufficientFunds
	OutcomeAccountNotFound
	OutcomeTransientFailure
)

// Handled 回傳事件是否應標記為已處理
func (o Outcome) Handled() bool {
	return o == OutcomeHandledMoved || o == OutcomeHandledNoOp
}

func (o Outcome) String() string {
	switch o {
	case OutcomeHandledMoved:
		return "Handled-Moved"
	case OutcomeHandledNoOp:
		return "Handled-NoOp"
	case OutcomeAuthorizationRequired:
		return "Unhandled-AuthorizationRequired"
	case OutcomeInsufficientFunds:
		return "Unhandled-InsufficientFunds"
	case OutcomeAccountNotFound:
		return "Unhandled-AccountNotFound"
	case OutcomeTransientFailure:
		return "Unhandled-TransientFailure"
	default:
		return "Unknown"
	}
}
