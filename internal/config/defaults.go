package config

const (
	defaultOutputDir            = "~/.local/share/repack/output"
	defaultNoPasswordTimeout    = 120
	defaultPasswordTimeout      = 60
	defaultImagePrefix          = "cosfan.cc_"
	defaultVideoPrefix          = "video_"
	defaultArchivePassword      = "cosfan.cc"
	defaultArchiveFormat        = "7z"
	defaultArchiveLevel         = 9
	defaultDictionarySize       = "32m"
	defaultCreateTimeout        = 300
	defaultImageFormat          = "webp"
	defaultImageQuality         = 80
	defaultImageMaxWidth        = 1080
	defaultImageMaxHeight       = 1920
	defaultEncodeTimeout        = 120
	defaultLoginURL             = "https://api.cosfan.cc/api/v1/user/login"
	defaultUploadURL            = "https://api.cosfan.cc/api/v1/upload/file"
	defaultArticleURL           = "https://api.cosfan.cc/api/v1/article"
	defaultCategoryURL          = "https://api.cosfan.cc/api/v1/category"
	defaultBatchSize            = 40
	defaultMaxRetries           = 3
	defaultAPITimeout           = 120
	defaultCategoryID           = 2
	defaultNotifyTimeout        = 10
	defaultBackgroundRetryDelay = 2
	defaultLogFormat            = "auto"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 7
	defaultWatchPollInterval    = 5
	defaultSettleTimeout        = 60
)

func defaultPasswords() []string {
	return []string{
		"cosfan.cc", "cosplaytele", "123456", "beidewu",
		"TG:@sifangquan", "telegram@asiansts", "telegram@mtldss",
		"t.me/realmtldss", "Discussion", "https://t.me/douza23333",
		"@MarioBase", "@MroHome",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
		},
		Extraction: Extraction{
			Passwords:         defaultPasswords(),
			NoPasswordTimeout: defaultNoPasswordTimeout,
			PasswordTimeout:   defaultPasswordTimeout,
		},
		Rename: Rename{
			ImagePrefix: defaultImagePrefix,
			VideoPrefix: defaultVideoPrefix,
		},
		Archive: Archive{
			Password:       defaultArchivePassword,
			Format:         defaultArchiveFormat,
			Level:          defaultArchiveLevel,
			Solid:          true,
			DictionarySize: defaultDictionarySize,
			CreateTimeout:  defaultCreateTimeout,
		},
		Images: Images{
			Enabled:       true,
			Format:        defaultImageFormat,
			Quality:       defaultImageQuality,
			MaxWidth:      defaultImageMaxWidth,
			MaxHeight:     defaultImageMaxHeight,
			EncodeTimeout: defaultEncodeTimeout,
		},
		API: API{
			LoginURL:       defaultLoginURL,
			UploadURL:      defaultUploadURL,
			ArticleURL:     defaultArticleURL,
			CategoryURL:    defaultCategoryURL,
			BatchSize:      defaultBatchSize,
			MaxRetries:     defaultMaxRetries,
			RequestTimeout: defaultAPITimeout,
			CategoryID:     defaultCategoryID,
			EnableUpload:   true,
			EnablePublish:  true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobComplete:    true,
			JobFailed:      true,
			WatchDrained:   true,
		},
		Cleanup: Cleanup{
			BackgroundRetryDelay: defaultBackgroundRetryDelay,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Watch: Watch{
			PollInterval:  defaultWatchPollInterval,
			SettleTimeout: defaultSettleTimeout,
		},
	}
}
