package semantic

import _ "embed"

//go:embed scripts/encoder.py
var embeddedPythonScript string

//go:embed scripts/requirements.txt
var embeddedRequirements string
