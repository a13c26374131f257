package agent

import "errors"

// errBadParameter is wrapped by every validation failure so callers can
// test for it with errors.Is without depending on the exact message.
var errBadParameter = errors.New("bad parameter")
