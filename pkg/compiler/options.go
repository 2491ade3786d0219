package compiler

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xyproto/env/v2"

	"dspc/pkg/backend/llvmgen"
)

// Options configure a Compiler.
type Options struct {
	// SafeMode warns about dyn and block accesses whose index isn't a
	// constant.
	SafeMode bool
	// Optimize only lowers functions reachable from the unit's own
	// top-level functions.
	Optimize bool
	// SearchPaths are library directories includes fall back to.
	SearchPaths []string
	LogLevel    logrus.Level
	// VectorBits is the SIMD width used for array operations, 0 for scalar
	// code only.
	VectorBits int
}

func DefaultOptions() Options {
	return Options{
		LogLevel:   logrus.WarnLevel,
		VectorBits: llvmgen.DefaultOptions.VectorBits,
	}
}

// OptionsFromEnv overrides base with whatever DSPC_* variables are set:
//
//	DSPC_SAFE_MODE    bool
//	DSPC_OPTIMIZE     bool
//	DSPC_LOG_LEVEL    logrus level name
//	DSPC_SEARCH_PATH  list of library directories, separated like PATH
//	DSPC_VECTOR_BITS  int
func OptionsFromEnv(base Options) (Options, error) {
	opts := base
	opts.SearchPaths = append([]string(nil), base.SearchPaths...)
	if env.Has("DSPC_SAFE_MODE") {
		opts.SafeMode = env.Bool("DSPC_SAFE_MODE")
	}
	if env.Has("DSPC_OPTIMIZE") {
		opts.Optimize = env.Bool("DSPC_OPTIMIZE")
	}
	if s := env.Str("DSPC_LOG_LEVEL"); s != "" {
		lvl, err := logrus.ParseLevel(s)
		if err != nil {
			return base, errors.Wrap(err, "DSPC_LOG_LEVEL")
		}
		opts.LogLevel = lvl
	}
	if s := env.Str("DSPC_SEARCH_PATH"); s != "" {
		for _, dir := range filepath.SplitList(s) {
			if dir = strings.TrimSpace(dir); dir != "" {
				opts.SearchPaths = append(opts.SearchPaths, dir)
			}
		}
	}
	if env.Has("DSPC_VECTOR_BITS") {
		bits := env.Int("DSPC_VECTOR_BITS", opts.VectorBits)
		if bits < 0 || bits%32 != 0 {
			return base, errors.Errorf("DSPC_VECTOR_BITS must be a non-negative multiple of 32, got %d", bits)
		}
		opts.VectorBits = bits
	}
	return opts, nil
}
