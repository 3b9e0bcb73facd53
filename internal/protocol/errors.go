package protocol

// Client-visible failure messages. The real-time channel reports failures as
// orderFailed messages rather than error codes, so the strings themselves are
// part of the protocol surface.
const (
	MsgNoActiveOrder     = "No active order to serve."
	MsgRecipeNotFound    = "Recipe not found."
	MsgInsufficientStock = "Not enough stock to serve this dish."
	MsgOrderExpired      = "Order was not served in time."
	MsgServiceError      = "Service error."
	MsgSessionReplaced   = "Session ended because a new connection was opened."
)
