package generator

import (
	"fmt"
	"math"
	mathrand "math/rand"
	"time"

	"github.com/username/aegisnode/backend/src/models"
)

// GenNormal emits one legitimate tourist transaction: lognormal spend
// clamped to [50k, 2M] IDR, random merchant/city, within an hour of base.
func GenNormal(rng *mathrand.Rand, id int, baseTime time.Time, prefix string) models.SyntheticTransaction {
	iss := pickIssuer(rng)
	amount := int64(math.Exp(rng.NormFloat64()*0.8 + 12.5))
	if amount < 50_000 {
		amount = 50_000
	}
	if amount > 2_000_000 {
		amount = 2_000_000
	}
	ts := baseTime.Add(time.Duration(rng.Intn(3600)) * time.Second)
	return models.SyntheticTransaction{
		TxnID:         txnID(prefix, id),
		Timestamp:     ts.Format(models.TimestampLayout),
		Payer:         hashID(fmt.Sprintf("tourist_%d", rng.Intn(5000))),
		Issuer:        iss.Name,
		Country:       iss.Country,
		Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
		City:          Cities[rng.Intn(len(Cities))],
		AmountIDR:     amount,
		AmountForeign: foreignAmount(amount, iss.Rate),
		Currency:      iss.Currency,
	}
}

// GenVelocity emits a burst of 8-12 transactions from one payer inside a
// 3-minute window.
func GenVelocity(rng *mathrand.Rand, idStart int, baseTime time.Time, prefix string) []models.SyntheticTransaction {
	iss := pickIssuer(rng)
	payer := hashID(fmt.Sprintf("attacker_vel_%d", rng.Intn(1000)))
	n := intBetween(rng, 8, 13)
	txns := make([]models.SyntheticTransaction, 0, n)
	for i := 0; i < n; i++ {
		amount := int64(intBetween(rng, 100_000, 500_000))
		ts := baseTime.Add(time.Duration(rng.Intn(180)) * time.Second)
		txns = append(txns, models.SyntheticTransaction{
			TxnID:         txnID(prefix, idStart+i),
			Timestamp:     ts.Format(models.TimestampLayout),
			Payer:         payer,
			Issuer:        iss.Name,
			Country:       iss.Country,
			Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
			City:          Cities[rng.Intn(len(Cities))],
			AmountIDR:     amount,
			AmountForeign: foreignAmount(amount, iss.Rate),
			Currency:      iss.Currency,
			IsFraud:       true,
			FraudType:     models.FraudVelocity,
			AttackDetail:  fmt.Sprintf("%d txns from same payer in <3min", n),
		})
	}
	return txns
}

// GenCardTesting emits 4-7 small probe transactions followed by one large
// purchase (50x+ the probes) from the same payer.
func GenCardTesting(rng *mathrand.Rand, idStart int, baseTime time.Time, prefix string) []models.SyntheticTransaction {
	iss := pickIssuer(rng)
	payer := hashID(fmt.Sprintf("attacker_ct_%d", rng.Intn(1000)))
	nProbes := intBetween(rng, 4, 8)
	txns := make([]models.SyntheticTransaction, 0, nProbes+1)
	for i := 0; i < nProbes; i++ {
		amount := int64(intBetween(rng, 10_000, 35_000))
		ts := baseTime.Add(time.Duration(rng.Intn(600)) * time.Second)
		txns = append(txns, models.SyntheticTransaction{
			TxnID:         txnID(prefix, idStart+i),
			Timestamp:     ts.Format(models.TimestampLayout),
			Payer:         payer,
			Issuer:        iss.Name,
			Country:       iss.Country,
			Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
			City:          Cities[rng.Intn(len(Cities))],
			AmountIDR:     amount,
			AmountForeign: foreignAmount(amount, iss.Rate),
			Currency:      iss.Currency,
			IsFraud:       true,
			FraudType:     models.FraudCardTest,
			AttackDetail:  fmt.Sprintf("Probing txn #%d/%d", i+1, nProbes),
		})
	}
	big := int64(intBetween(rng, 3_000_000, 10_000_000))
	ts := baseTime.Add(time.Duration(intBetween(rng, 600, 900)) * time.Second)
	txns = append(txns, models.SyntheticTransaction{
		TxnID:         txnID(prefix, idStart+nProbes),
		Timestamp:     ts.Format(models.TimestampLayout),
		Payer:         payer,
		Issuer:        iss.Name,
		Country:       iss.Country,
		Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
		City:          Cities[rng.Intn(len(Cities))],
		AmountIDR:     big,
		AmountForeign: foreignAmount(big, iss.Rate),
		Currency:      iss.Currency,
		IsFraud:       true,
		FraudType:     models.FraudCardTest,
		AttackDetail:  fmt.Sprintf("Large purchase after %d probes! %d IDR", nProbes, big),
	})
	return txns
}

// GenCollusion emits 3-5 distinct payers each making 2-3 purchases at one
// target merchant within an hour.
func GenCollusion(rng *mathrand.Rand, idStart int, baseTime time.Time, prefix string) []models.SyntheticTransaction {
	iss := pickIssuer(rng)
	target := MerchantNames[rng.Intn(len(MerchantNames))]
	nMembers := intBetween(rng, 3, 6)
	var txns []models.SyntheticTransaction
	for m := 0; m < nMembers; m++ {
		payer := hashID(fmt.Sprintf("ring_%d_%d", rng.Intn(1000), m))
		for i := 0; i < intBetween(rng, 2, 4); i++ {
			amount := int64(intBetween(rng, 500_000, 5_000_000))
			ts := baseTime.
				Add(time.Duration(rng.Intn(60)) * time.Minute).
				Add(time.Duration(rng.Intn(60)) * time.Second)
			txns = append(txns, models.SyntheticTransaction{
				TxnID:         txnID(prefix, idStart+len(txns)),
				Timestamp:     ts.Format(models.TimestampLayout),
				Payer:         payer,
				Issuer:        iss.Name,
				Country:       iss.Country,
				Merchant:      target,
				City:          Cities[rng.Intn(len(Cities))],
				AmountIDR:     amount,
				AmountForeign: foreignAmount(amount, iss.Rate),
				Currency:      iss.Currency,
				IsFraud:       true,
				FraudType:     models.FraudCollusion,
				AttackDetail:  fmt.Sprintf("Ring member %d/%d -> %s", m+1, nMembers, target),
			})
		}
	}
	return txns
}

// GenGeo emits exactly two transactions from one payer in two different
// cities 5-15 minutes apart, travel that is physically impossible.
func GenGeo(rng *mathrand.Rand, idStart int, baseTime time.Time, prefix string) []models.SyntheticTransaction {
	iss := pickIssuer(rng)
	payer := hashID(fmt.Sprintf("attacker_geo_%d", rng.Intn(1000)))
	perm := rng.Perm(len(Cities))
	cityA, cityB := Cities[perm[0]], Cities[perm[1]]
	a1 := int64(intBetween(rng, 200_000, 1_500_000))
	a2 := int64(intBetween(rng, 200_000, 1_500_000))
	gapMin := intBetween(rng, 5, 15)
	ts1 := baseTime
	ts2 := baseTime.Add(time.Duration(gapMin) * time.Minute)
	detail := fmt.Sprintf("%s -> %s in %dmin", cityA, cityB, gapMin)
	return []models.SyntheticTransaction{
		{
			TxnID:         txnID(prefix, idStart),
			Timestamp:     ts1.Format(models.TimestampLayout),
			Payer:         payer,
			Issuer:        iss.Name,
			Country:       iss.Country,
			Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
			City:          cityA,
			AmountIDR:     a1,
			AmountForeign: foreignAmount(a1, iss.Rate),
			Currency:      iss.Currency,
			IsFraud:       true,
			FraudType:     models.FraudGeo,
			AttackDetail:  detail,
		},
		{
			TxnID:         txnID(prefix, idStart+1),
			Timestamp:     ts2.Format(models.TimestampLayout),
			Payer:         payer,
			Issuer:        iss.Name,
			Country:       iss.Country,
			Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
			City:          cityB,
			AmountIDR:     a2,
			AmountForeign: foreignAmount(a2, iss.Rate),
			Currency:      iss.Currency,
			IsFraud:       true,
			FraudType:     models.FraudGeo,
			AttackDetail:  detail,
		},
	}
}

var offHours = []int{22, 23, 0, 1, 2, 3, 4}

// GenAmount emits a single very large purchase at an off-hours time of day.
func GenAmount(rng *mathrand.Rand, idStart int, baseTime time.Time, prefix string) []models.SyntheticTransaction {
	iss := pickIssuer(rng)
	payer := hashID(fmt.Sprintf("attacker_amt_%d", rng.Intn(1000)))
	amount := int64(intBetween(rng, 5_000_000, 10_000_000))
	hour := offHours[rng.Intn(len(offHours))]
	ts := time.Date(baseTime.Year(), baseTime.Month(), baseTime.Day(),
		hour, rng.Intn(60), 0, 0, baseTime.Location())
	return []models.SyntheticTransaction{{
		TxnID:         txnID(prefix, idStart),
		Timestamp:     ts.Format(models.TimestampLayout),
		Payer:         payer,
		Issuer:        iss.Name,
		Country:       iss.Country,
		Merchant:      MerchantNames[rng.Intn(len(MerchantNames))],
		City:          Cities[rng.Intn(len(Cities))],
		AmountIDR:     amount,
		AmountForeign: foreignAmount(amount, iss.Rate),
		Currency:      iss.Currency,
		IsFraud:       true,
		FraudType:     models.FraudAmount,
		AttackDetail:  fmt.Sprintf("%d IDR at %d:00 (off-hours)", amount, hour),
	}}
}
