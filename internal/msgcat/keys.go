package msgcat

// Key names one message template. The dot path mirrors the YAML nesting.
type Key string

const (
	ErrMatchNotFound  Key = "errors.match_not_found"
	ErrNoHistory      Key = "errors.no_history"
	ErrMatchCompleted Key = "errors.match_completed"
	ErrInvalidSide    Key = "errors.invalid_side"
	ErrInvalidPlayers Key = "errors.invalid_players"
	ErrInvalidBody    Key = "errors.invalid_body" // {{.Reason}}
	ErrBusy           Key = "errors.busy"
	ErrConflict       Key = "errors.conflict"
	ErrExportFailed   Key = "errors.export_failed"
	ErrInternal       Key = "errors.internal"

	CLIStarted    Key = "cli.started"    // {{.ID}} {{.Player0}} {{.Player1}}
	CLIScore      Key = "cli.score"      // {{.Player0}} {{.Player1}} {{.Sets}} {{.Game}} {{.Status}}
	CLIExported   Key = "cli.exported"   // {{.Location}}
	CLIConsistent Key = "cli.consistent" // {{.Events}}
	CLIDrift      Key = "cli.drift"      // {{.Cached}} {{.Replayed}}
)

// required is checked at load so a broken embedded file fails fast.
var required = []Key{
	ErrMatchNotFound, ErrNoHistory, ErrMatchCompleted, ErrInvalidSide, ErrInvalidPlayers,
	ErrInvalidBody, ErrBusy, ErrConflict, ErrExportFailed, ErrInternal,
	CLIStarted, CLIScore, CLIExported, CLIConsistent, CLIDrift,
}
