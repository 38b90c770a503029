package router

import (
	"github.com/clinicore/authorization/internal/application"
	"github.com/clinicore/authorization/internal/container"
	pginfra "github.com/clinicore/authorization/internal/infrastructure/postgres"
	handlers "github.com/clinicore/authorization/internal/interface/http"
	"github.com/clinicore/authorization/internal/router/modules"
)

// BuildAccountService constructs the orchestrator from container singletons.
// Shared with the consumer bootstrap in main.
func BuildAccountService() *application.AccountService {
	pool := container.GetPGPool()
	cfg := container.GetConfig()
	return application.NewAccountService(
		pginfra.NewAccountRepository(pool),
		pginfra.NewDoctorRepository(pool),
		pginfra.NewReceptionistRepository(pool),
		container.GetJWT(),
		container.GetCodec(),
		container.GetPublisher(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESAccountsIndex,
		cfg.RabbitMQEmailQueue,
		cfg.ConfirmEmailURL,
		cfg.MailSendEnabled,
	)
}

// BuildSyncService constructs the inbound fact applier.
func BuildSyncService() *application.SyncService {
	pool := container.GetPGPool()
	return application.NewSyncService(
		pginfra.NewAccountRepository(pool),
		pginfra.NewDoctorRepository(pool),
		pginfra.NewReceptionistRepository(pool),
		pginfra.NewPatientRepository(pool),
		container.GetRedis(),
		container.GetLogger(),
	)
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	svc := BuildAccountService()
	handler := handlers.NewAccountHandler(
		svc,
		container.GetLogger(),
		container.GetConfig().CookieDomain,
		container.GetConfig().CookieSecure,
	)
	r.Add(modules.NewAccountModule(handler, container.GetJWT()))
}
