package config

const (
	defaultScratchDir           = "~/.local/share/mixdown/scratch"
	defaultOutputDir            = "~/.local/share/mixdown/episodes"
	defaultLogDir               = "~/.local/share/mixdown/logs"
	defaultLedgerPath           = "~/.local/share/mixdown/ledger.db"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultProbeTimeoutSeconds  = 60
	defaultEncodeTimeoutSeconds = 600
	defaultVoiceTargetLUFS      = -16.0
	defaultMusicTargetLUFS      = -20.0
	defaultMaxTruePeakDB        = -1.0
	defaultToleranceLU          = 0.5
	defaultNormalizeWorkers     = 4
	defaultTransitionSeconds    = 4.0
	defaultSilenceSeconds       = 1.5
	defaultCrossfadeSeconds     = 0.5
	defaultDuckVolume           = 0.15
	defaultDuckFadeSeconds      = 2.0
	defaultSampleRate           = 44100
	defaultChannels             = 2
	defaultOutputFormat         = "mp3"
	defaultOutputBitrate        = "128k"
	defaultLogFormat            = "auto"
	defaultLogLevel             = "info"
	defaultMinFreeSpaceMiB      = 512
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Toolchain: Toolchain{
			FFmpeg:               defaultFFmpegBinary,
			FFprobe:              defaultFFprobeBinary,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			EncodeTimeoutSeconds: defaultEncodeTimeoutSeconds,
		},
		Normalization: Normalization{
			Enabled:          true,
			VoiceTargetLUFS:  defaultVoiceTargetLUFS,
			MusicTargetLUFS:  defaultMusicTargetLUFS,
			MaxTruePeakDB:    defaultMaxTruePeakDB,
			ToleranceLU:      defaultToleranceLU,
			FallbackToSource: false,
			Workers:          defaultNormalizeWorkers,
		},
		Assembly: Assembly{
			TransitionSeconds:      defaultTransitionSeconds,
			SilenceFallbackSeconds: defaultSilenceSeconds,
			CrossfadeSeconds:       defaultCrossfadeSeconds,
			DuckVolume:             defaultDuckVolume,
			DuckFadeSeconds:        defaultDuckFadeSeconds,
			SampleRate:             defaultSampleRate,
			Channels:               defaultChannels,
		},
		Output: Output{
			Format:  defaultOutputFormat,
			Bitrate: defaultOutputBitrate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Preflight: Preflight{
			MinFreeSpaceMiB: defaultMinFreeSpaceMiB,
		},
	}
}
