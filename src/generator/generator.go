// Package generator produces synthetic payment transactions: a "normal"
// tourist-spending profile plus five fraud archetypes with the correlated
// entity structure (shared payers, shared merchants, tight time windows)
// that the downstream scorer's narrative depends on.
package generator

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	mathrand "math/rand"
	"time"

	"github.com/username/aegisnode/backend/src/models"
)

// Issuer is a payment network with its settlement currency and IDR rate.
type Issuer struct {
	Name     string
	Country  string
	Currency string
	Rate     float64 // IDR per unit of foreign currency
}

// Issuers are the cross-border payment networks transactions arrive from.
// Kept as a slice so issuer selection is deterministic under a fixed seed.
var Issuers = []Issuer{
	{"Alipay_CN", "CN", "CNY", 2450.0},
	{"WeChat_CN", "CN", "CNY", 2450.0},
	{"UnionPay_CN", "CN", "CNY", 2450.0},
	{"JPQR_JP", "JP", "JPY", 107.0},
	{"PayPay_JP", "JP", "JPY", 107.0},
	{"KakaoPay_KR", "KR", "KRW", 11.6},
	{"GrabPay_SG", "SG", "SGD", 12200.0},
	{"TouchNGo_MY", "MY", "MYR", 3550.0},
	{"PromptPay_TH", "TH", "THB", 455.0},
}

var MerchantNames = []string{
	"Bali Beach Resort", "Jakarta Mall", "Surabaya Electronics",
	"Yogya Batik Center", "Denpasar Jewelry", "Bandung Cafe",
	"Medan Food Court", "Semarang Market", "Makassar Seafood",
	"Lombok Surf Shop", "Ubud Art Gallery", "Kuta Night Market",
}

var Cities = []string{
	"Bali", "Jakarta", "Surabaya", "Yogyakarta", "Denpasar",
	"Bandung", "Medan", "Semarang", "Makassar", "Lombok",
}

// hashID hashes an entity name into the anonymized 10-hex-char id format
// shared by all generated payers.
func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

// RandomRunPrefix returns a 4-hex-char prefix for txn ids. Drawn from
// crypto/rand, not the batch rng, so repeated runs with the same seed still
// get globally unique txn ids without disturbing any other generated value.
func RandomRunPrefix() string {
	b := make([]byte, 2)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func txnID(prefix string, n int) string {
	return fmt.Sprintf("TXN-%s-%06d", prefix, n)
}

func pickIssuer(rng *mathrand.Rand) Issuer {
	return Issuers[rng.Intn(len(Issuers))]
}

// intBetween returns a uniform integer in [lo, hi).
func intBetween(rng *mathrand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo)
}

// foreignAmount converts an IDR amount to the issuer's currency, rounded to
// 2 decimals.
func foreignAmount(amountIDR int64, rate float64) float64 {
	return math.Round(float64(amountIDR)/rate*100) / 100
}

// GenerateAttackBatch produces a shuffled batch of normal + fraud
// transactions. Deterministic for a fixed seed, except for the run prefix
// embedded in txn ids.
//
// The realized fraud count exceeds the configured target because each
// archetype emits a whole correlated group.
func GenerateAttackBatch(total int, fraudPct float64, seed int64) []models.SyntheticTransaction {
	rng := mathrand.New(mathrand.NewSource(seed))
	baseTime := time.Date(2026, 2, 25, 14, 0, 0, 0, time.UTC)
	prefix := RandomRunPrefix()

	nFraudTarget := int(float64(total) * fraudPct)
	if nFraudTarget < 10 {
		nFraudTarget = 10
	}
	nNormal := total - nFraudTarget

	var all []models.SyntheticTransaction
	nextID := 1

	for i := 0; i < nNormal; i++ {
		all = append(all, GenNormal(rng, nextID, baseTime, prefix))
		nextID++
	}

	// Fraud transactions, spread across all 5 archetypes. The integer
	// divisions make the realized per-type distribution only approximately
	// uniform.
	fpt := nFraudTarget / 5
	if fpt < 2 {
		fpt = 2
	}
	repeat := func(times int, gen func(*mathrand.Rand, int, time.Time, string) []models.SyntheticTransaction) {
		if times < 1 {
			times = 1
		}
		for i := 0; i < times; i++ {
			group := gen(rng, nextID, baseTime, prefix)
			all = append(all, group...)
			nextID += len(group)
		}
	}
	repeat(fpt/10, GenVelocity)
	repeat(fpt/7, GenCardTesting)
	repeat(fpt/8, GenCollusion)
	repeat(fpt/2, GenGeo)
	repeat(fpt, GenAmount)

	// Interleave archetypes with normals, simulating realistic arrival order.
	rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all
}
