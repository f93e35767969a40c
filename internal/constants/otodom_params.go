package constants

// Параметры взаимодействия с Otodom.
const (
	OtodomDomain = "www.otodom.pl"

	// Фиксированный идентифицирующий заголовок: Otodom отдаёт урезанную
	// страницу без вменяемого User-Agent.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Часовой пояс, в котором Otodom публикует dateCreated.
	OtodomTimezone = "Europe/Warsaw"
)

// CanonicalChannelIDs — реестр каналов по человекочитаемым именам, чтобы в
// конфигурации не таскать численные идентификаторы.
var CanonicalChannelIDs = map[string]int64{
	"test": -1001732967254,
	"main": -1001527642537,
}
