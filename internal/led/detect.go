package led

import (
	"os"
	"strings"

	"github.com/smazurov/camops/internal/logging"
)

// ModelPath holds the device tree board model.
const ModelPath = "/proc/device-tree/model"

type board struct {
	match string
	leds  map[string]string
}

var boards = []board{
	{"NanoPC-T6", map[string]string{"user": "usr_led", "system": "sys_led"}},
	{"Orange Pi", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", map[string]string{"act": "ACT"}},
}

// Detect returns a sysfs controller for a known board and a no-op controller otherwise.
func Detect(logger logging.Logger) Controller {
	return detect(ModelPath, SysfsRoot, logger)
}

func detect(modelPath, root string, logger logging.Logger) Controller {
	model := boardModel(modelPath)
	for _, b := range boards {
		if strings.Contains(model, b.match) {
			ctrl := newSysfs(root, b.leds)
			logger.Info("Using sysfs LED controller", "board_model", model, "leds", ctrl.String())
			return ctrl
		}
	}
	logger.Info("No LED support detected", "board_model", model)
	return noop{logger: logger}
}

func boardModel(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
