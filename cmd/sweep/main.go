// sweep replays a recorded joint-state fixture across a grid of
// inference parameters and prints one CSV row per grid point: how
// confident and how stable the belief tracker ends up under each
// (max acceleration, floor threshold) pair.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/parkside-robotics/intent.report/internal/config"
	"github.com/parkside-robotics/intent.report/internal/feed"
	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/sim"
)

var (
	fixturesPath = flag.String("fixtures", "fixtures.jsonl", "Joint-state fixture file to replay")
	tuningPath   = flag.String("tuning", "", "Base tuning config JSON path (defaults when empty)")
	accelStart   = flag.Float64("accel-start", 0.4, "Start max acceleration (m/s^2)")
	accelEnd     = flag.Float64("accel-end", 2.4, "End max acceleration (m/s^2)")
	accelStep    = flag.Float64("accel-step", 0.4, "Max acceleration increment")
	floorStart   = flag.Float64("floor-start", 0.005, "Start floor threshold")
	floorEnd     = flag.Float64("floor-end", 0.05, "End floor threshold")
	floorStep    = flag.Float64("floor-step", 0.005, "Floor threshold increment")
	trueGoal     = flag.String("goal", "", "Known true goal ID: score the mean probability assigned to it instead of the top goal")
)

func loadJointStates(path string) ([]intent.JointState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var joints []intent.JointState
	for i, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l == "" {
			continue
		}
		js, err := feed.ParseJointState(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		joints = append(joints, js)
	}
	if len(joints) == 0 {
		return nil, fmt.Errorf("fixture file %s contains no joint states", path)
	}
	return joints, nil
}

// replay runs the whole fixture through a fresh engine and reports the
// mean probability over every emitted belief (confidence) and the
// fraction of cycles where an agent's top goal changed (churn). When
// trueGoal is non-empty the confidence is the mean probability assigned
// to that goal; otherwise it is the mean top-goal probability.
func replay(joints []intent.JointState, tuning *config.TuningConfig, trueGoal string) (confidence, churn float64, err error) {
	oracle, err := sim.NewSocial(tuning.SocialConfig())
	if err != nil {
		return 0, 0, err
	}
	engine, err := intent.NewEngine(tuning.InferenceConfig(), tuning.Generator(), oracle, nil)
	if err != nil {
		return 0, 0, err
	}

	var probSum float64
	var beliefs, switches, tracked int
	prevTop := make(map[string]string)

	ctx := context.Background()
	for _, joint := range joints {
		res, err := engine.RunCycle(ctx, joint)
		if err != nil {
			return 0, 0, err
		}
		for agentID, dist := range res.Beliefs {
			var topGoal string
			var topProb float64
			for goalID, p := range dist {
				if p > topProb {
					topGoal, topProb = goalID, p
				}
			}
			if trueGoal != "" {
				probSum += dist[trueGoal]
			} else {
				probSum += topProb
			}
			beliefs++
			if prev, ok := prevTop[agentID]; ok {
				tracked++
				if prev != topGoal {
					switches++
				}
			}
			prevTop[agentID] = topGoal
		}
	}

	if beliefs == 0 {
		return 0, 0, fmt.Errorf("replay produced no beliefs")
	}
	confidence = probSum / float64(beliefs)
	if tracked > 0 {
		churn = float64(switches) / float64(tracked)
	}
	return confidence, churn, nil
}

func main() {
	flag.Parse()

	joints, err := loadJointStates(*fixturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixtures error: %v\n", err)
		os.Exit(1)
	}

	base := config.EmptyTuningConfig()
	if *tuningPath != "" {
		base, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load tuning error: %v\n", err)
			os.Exit(1)
		}
	}

	scoreCol := "mean_top_belief"
	if *trueGoal != "" {
		scoreCol = "mean_true_goal_belief"
	}
	fmt.Printf("max_acceleration,floor_threshold,cycles,%s,top_goal_churn\n", scoreCol)
	for accel := *accelStart; accel <= *accelEnd+1e-9; accel += *accelStep {
		for floor := *floorStart; floor <= *floorEnd+1e-9; floor += *floorStep {
			tuning := *base
			a, f := accel, floor
			tuning.MaxAcceleration = &a
			tuning.FloorThreshold = &f

			confidence, churn, err := replay(joints, &tuning, *trueGoal)
			if err != nil {
				fmt.Fprintf(os.Stderr, "replay error at accel=%v floor=%v: %v\n", accel, floor, err)
				os.Exit(1)
			}
			fmt.Printf("%v,%v,%d,%.4f,%.4f\n", accel, floor, len(joints), confidence, churn)
		}
	}
}
