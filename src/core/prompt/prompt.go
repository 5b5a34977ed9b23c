// Package prompt 构建发给视觉模型的停车标志提示词。
package prompt

import (
	"fmt"
	"strings"
)

// NoSignSentinel 图片中没有停车标志时模型应返回的固定句子
const NoSignSentinel = "No parking sign identified. Please try again"

// TimeContext 客户端拍照时的时间上下文
type TimeContext struct {
	DayOfWeek string
	Date      string
	Time      string // 可选
}

// moment 返回 "Monday 6/10/2024 at 2:30 PM"，没有时间时省略 at 子句
func (tc TimeContext) moment() string {
	m := strings.TrimSpace(tc.DayOfWeek + " " + tc.Date)
	if tc.Time != "" {
		m += " at " + tc.Time
	}
	return m
}

// Build 生成提示词。dayOfWeek与date原样出现；time为空时不包含 "The current time is" 子句。
func Build(tc TimeContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today is %s %s.", tc.DayOfWeek, tc.Date)
	if tc.Time != "" {
		fmt.Fprintf(&b, " The current time is %s.", tc.Time)
	}
	b.WriteString("\nIs parking allowed according to this sign given the current date and time?\n")
	b.WriteString("REMEMBER TO CONSIDER THE CURRENT TIME, DATE, AND DAY OF THE WEEK.\n\n")
	b.WriteString("Please provide a brief explanation no longer than 2 sentences.\n\n")

	moment := tc.moment()
	b.WriteString("Your response should follow these guidelines:\n")
	fmt.Fprintf(&b, "  If parking is allowed for any amount of time then your answer should be 'Parking IS allowed for ***INSERT TIME LIMIT*** on %s.'\n", moment)
	fmt.Fprintf(&b, "  Otherwise if you cannot park there you should respond 'Parking IS NOT allowed on %s.' and say why if the sign gives a reason, such as a scheduled restriction.\n", moment)
	b.WriteString("  State how long parking is allowed for (if there is a restriction).\n")
	b.WriteString("  Do not say 'according to the sign' as it is implied.\n")
	b.WriteString("  Assume the driver does not have any of the permits mentioned.\n")
	fmt.Fprintf(&b, "  If you do not see a parking sign, simply respond '%s'.\n\n", NoSignSentinel)

	b.WriteString("Assume that outside the enforced hours of restrictions such as 2 hour parking, users may park as long as they want.\n")
	b.WriteString("So for example if from 9am-6pm there is 2 hour parking, users can park as long as they want if it is 7pm.\n\n")

	b.WriteString("Some examples of acceptable responses are:\n")
	b.WriteString("  Parking IS allowed for 2 hours on ****time and date****. 2 hour parking is enforced from ****time range****\n")
	b.WriteString("  Parking is NOT allowed on ****time and date**** as there is street cleaning today.\n")
	b.WriteString("  Parking is NOT allowed in this area.\n")

	return b.String()
}
