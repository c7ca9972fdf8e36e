package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeyBackspace = "backspace"
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeySearch    = "/"
	KeyMore      = "m"
	KeyDelete    = "d"
	KeyClear     = "c"
	KeyReload    = "r"
	KeyYes       = "y"
	KeyYesUpper  = "Y"
	KeyNo        = "n"
	KeyNoUpper   = "N"
)
