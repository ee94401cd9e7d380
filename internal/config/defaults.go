package config

const (
	defaultInputDir          = "/input"
	defaultOutputDir         = "/output"
	defaultWorkDirName       = "intermediate"
	defaultJPEGQuality       = 75
	defaultTimestampOffsetMS = 1000
	defaultRunMode           = ModeExtract
	defaultOnError           = OnErrorAbort
	defaultLockDir           = "~/.local/share/bagfuse/locks"
	defaultVideoBackend      = "ffmpeg"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultCompression       = "zstd"
	defaultChunkSize         = 4 << 20
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogDir            = "~/.local/share/bagfuse/logs"
	defaultLogRetentionDays  = 30
	defaultLedgerPath        = "~/.local/share/bagfuse/ledger.db"
)

// Run modes.
const (
	ModeExtract = "extract"
	ModeReuse   = "reuse"
)

// Bundle failure policies.
const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
		},
		Fusion: Fusion{
			JPEGQuality:       defaultJPEGQuality,
			TimestampOffsetMS: defaultTimestampOffsetMS,
		},
		Run: Run{
			Mode:    defaultRunMode,
			OnError: defaultOnError,
			LockDir: defaultLockDir,
		},
		Video: Video{
			Backend:       defaultVideoBackend,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			CountFrames:   true,
		},
		Output: Output{
			Compression: defaultCompression,
			ChunkSize:   defaultChunkSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			RetentionDays: defaultLogRetentionDays,
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    defaultLedgerPath,
		},
	}
}
