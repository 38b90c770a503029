package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/config"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/helpers"
	"github.com/clinicore/authorization/pkg/verification"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	jwtManager  *helpers.JWTManager
	emailCodec  *verification.Codec
	publisher   *rabbitmq.Publisher
	esClient    *elasticsearch.Client
)

func SetConfig(c *config.Config)         { cfg = c }
func GetConfig() *config.Config          { return cfg }
func SetLogger(l *logrus.Logger)         { logger = l }
func GetLogger() *logrus.Logger          { return logger }
func SetPGPool(p *pgxpool.Pool)          { pgPool = p }
func GetPGPool() *pgxpool.Pool           { return pgPool }
func SetRedis(r *redis.Client)           { redisClient = r }
func GetRedis() *redis.Client            { return redisClient }
func SetJWT(m *helpers.JWTManager)       { jwtManager = m }
func GetJWT() *helpers.JWTManager        { return jwtManager }
func SetCodec(c *verification.Codec)     { emailCodec = c }
func GetCodec() *verification.Codec      { return emailCodec }
func SetPublisher(p *rabbitmq.Publisher) { publisher = p }
func GetPublisher() *rabbitmq.Publisher  { return publisher }
func SetES(c *elasticsearch.Client)      { esClient = c }
func GetES() *elasticsearch.Client       { return esClient }
