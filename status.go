package ftps

// Reply codes from RFC 959 https://tools.ietf.org/html/rfc959
const (
	StatusRestartMarker = 110 // Restart marker reply.
	StatusReadyMinute   = 120 // Service ready in nnn minutes.
	StatusAlreadyOpen   = 125 // Data connection already open; transfer starting.
	StatusAboutToSend   = 150 // File status okay; about to open data connection.

	StatusCommandOK             = 200
	StatusCommandNotImplemented = 202 // Superfluous at this site.
	StatusSystem                = 211
	StatusDirectory             = 212
	StatusFile                  = 213
	StatusHelp                  = 214
	StatusName                  = 215
	StatusReady                 = 220 // Service ready for new user.
	StatusClosing               = 221 // Service closing control connection.
	StatusDataConnectionOpen    = 225
	StatusClosingDataConnection = 226 // Transfer complete.
	StatusPassiveMode           = 227
	StatusExtendedPassiveMode   = 229 // RFC 2428
	StatusLoggedIn              = 230
	StatusRequestedFileActionOK = 250
	StatusPathCreated           = 257

	StatusUserOK             = 331 // User name okay, need password.
	StatusLoginNeedAccount   = 332
	StatusRequestFilePending = 350

	StatusNotAvailable             = 421 // Service not available, closing control connection.
	StatusCanNotOpenDataConnection = 425
	StatusTransferAborted          = 426
	StatusFileActionIgnored        = 450
	StatusActionAborted            = 451
	StatusInsufficientStorageSpace = 452

	StatusBadCommand              = 500
	StatusBadArguments            = 501
	StatusNotImplemented          = 502
	StatusBadSequence             = 503
	StatusNotImplementedParameter = 504
	StatusNotLoggedIn             = 530
	StatusStorNeedAccount         = 532
	StatusFileUnavailable         = 550
	StatusPageTypeUnknown         = 551
	StatusExceededStorage         = 552
	StatusBadFileName             = 553
)

// Reply codes from RFC 2228 and RFC 4217 used by explicit FTPS.
const (
	StatusSecurityDataExchangeComplete = 234 // AUTH TLS accepted, start handshake.
	StatusRequestDenied                = 534
	StatusProtLevelNotSupported        = 536
)
