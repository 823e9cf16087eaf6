// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sessionstore

import "os"

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
